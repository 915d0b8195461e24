/* ========================
Dispatch gateway for incoming webhook updates. One invocation handles exactly one
update: dedup check against the persisted marker first, then routing on the shape
of the message - text commands, photos with 2D codes, or nothing at all.
All collaborator failures surface here and nowhere else: the user gets one generic
chat message, the operator gets the log entry, the transport always acks 200 so the
Telegram server does not hammer us with retries we would only skip anyway.
===========================*/
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/eensymachines/qrbot/barcode"
	"github.com/eensymachines/qrbot/brokers"
	"github.com/eensymachines/qrbot/contacts"
	"github.com/eensymachines/qrbot/dedup"
	"github.com/eensymachines/qrbot/models"
	"github.com/eensymachines/qrbot/telegram"
	log "github.com/sirupsen/logrus"
)

// Gateway wires the collaborators of one bot together. Construct the shared
// clients once at process start, a Gateway itself is cheap per invocation.
type Gateway struct {
	BotUID       string
	Marker       dedup.Marker
	Bot          telegram.BotAPI
	Decoder      barcode.Decoder
	Broker       brokers.Broker // nil switches the decode event fan out off
	MaxPhotoSize int            // pixels, applied to width and height independently
}

// DecodeEvent is what goes out on the broker for every successfully decoded payload.
type DecodeEvent struct {
	Bot       string `json:"bot"`
	UpdateID  int64  `json:"update_id"`
	ChatID    string `json:"chat_id"`
	Payload   string `json:"payload"`
	IsContact bool   `json:"is_contact"`
}

// Handle processes one webhook delivery end to end. It never returns an error -
// per the transport contract every internal outcome is swallowed here, logged,
// and where a chat is known reported to the user as a chat message.
func (g *Gateway) Handle(ctx context.Context, upd *models.Update) {
	uid, err := upd.ID()
	if err != nil {
		log.WithFields(log.Fields{
			"bot": g.BotUID,
			"err": err,
		}).Error("malformed update payload, dropping")
		return
	}
	ok, err := g.Marker.ShouldProcess(ctx, g.BotUID, uid)
	if err != nil {
		g.fail(ctx, &upd.Message, fmt.Errorf("marker store failure: %w", err))
		return
	}
	if !ok {
		// duplicate or late redelivery - skipped silently, no user visible noise
		log.WithFields(log.Fields{
			"bot":       g.BotUID,
			"update_id": uid,
		}).Debug("duplicate update delivery, skipping")
		return
	}
	if err := g.route(ctx, uid, &upd.Message); err != nil {
		g.fail(ctx, &upd.Message, err)
	}
}

// fail is the single recovery point of the invocation
func (g *Gateway) fail(ctx context.Context, msg *models.UpdateMessage, err error) {
	log.WithFields(log.Fields{
		"bot":  g.BotUID,
		"chat": msg.Chat.ChatID.String(),
		"err":  err,
	}).Error("failed handling update")
	chat := msg.Chat.ChatID.String()
	if chat == "" {
		return
	}
	if serr := g.Bot.SendMessage(ctx, chat, replyTrouble, telegram.SendOpts{}); serr != nil {
		log.WithFields(log.Fields{
			"bot": g.BotUID,
			"err": serr,
		}).Error("could not even deliver the failure notice")
	}
}

// route dispatches on the shape of the message. Exactly one handler runs,
// a message with neither text nor photo silently succeeds.
func (g *Gateway) route(ctx context.Context, uid int64, msg *models.UpdateMessage) error {
	switch {
	case msg.HasText():
		return g.handleText(ctx, msg)
	case msg.HasPhoto():
		return g.handlePhoto(ctx, uid, msg)
	default:
		return nil
	}
}

func (g *Gateway) handleText(ctx context.Context, msg *models.UpdateMessage) error {
	cmd, ok := commands[msg.Text]
	if !ok {
		// free text isnt a conversation we participate in
		return nil
	}
	return g.Bot.SendMessage(ctx, msg.Chat.ChatID.String(), cmd.text, telegram.SendOpts{ParseMode: cmd.parseMode})
}

// handlePhoto : the decode pipeline - size gate, download, decode, reply on the outcome
func (g *Gateway) handlePhoto(ctx context.Context, uid int64, msg *models.UpdateMessage) error {
	chat := msg.Chat.ChatID.String()
	replyTo := msg.MsgId.String()
	ps := msg.LargestPhoto()
	if ps.Width > g.MaxPhotoSize || ps.Height > g.MaxPhotoSize {
		// no download even attempted for oversize pictures
		return g.Bot.SendMessage(ctx, chat, fmt.Sprintf(replyOversizeF, g.MaxPhotoSize), telegram.SendOpts{ReplyTo: replyTo})
	}
	if err := g.Bot.SendMessage(ctx, chat, replyDecoding, telegram.SendOpts{}); err != nil {
		return err
	}
	byt, err := g.Bot.DownloadFile(ctx, ps.FileID)
	if err != nil {
		return err
	}
	payload, err := g.Decoder.Decode(byt)
	if err != nil {
		return err
	}
	if payload == "" {
		return g.Bot.SendMessage(ctx, chat, replyNoCode, telegram.SendOpts{ReplyTo: replyTo})
	}
	g.publish(uid, chat, payload)
	if contacts.IsContact(payload) {
		if err := g.Bot.SendMessage(ctx, chat, replyFoundContact, telegram.SendOpts{}); err != nil {
			return err
		}
		card, err := contacts.Parse(payload)
		if err != nil {
			return err
		}
		name, phone := contacts.Properties(card)
		return g.Bot.SendContact(ctx, chat, phone, name, telegram.SendOpts{VCard: payload, ReplyTo: replyTo})
	}
	if err := g.Bot.SendMessage(ctx, chat, replyFoundText, telegram.SendOpts{}); err != nil {
		return err
	}
	return g.Bot.SendMessage(ctx, chat, payload, telegram.SendOpts{ReplyTo: replyTo})
}

// publish fans the decode event out on the broker. Best effort - a broker outage
// must not cost the user their reply, it only costs downstream consumers the event.
func (g *Gateway) publish(uid int64, chat, payload string) {
	if g.Broker == nil {
		return
	}
	byt, err := json.Marshal(DecodeEvent{
		Bot:       g.BotUID,
		UpdateID:  uid,
		ChatID:    chat,
		Payload:   payload,
		IsContact: contacts.IsContact(payload),
	})
	if err != nil {
		log.WithFields(log.Fields{"err": err}).Warn("failed to marshal decode event")
		return
	}
	if err := g.Broker.Publish(fmt.Sprintf("%s.decodes", g.BotUID), byt); err != nil {
		log.WithFields(log.Fields{
			"bot": g.BotUID,
			"err": err,
		}).Warn("failed publishing decode event on broker")
	}
}
