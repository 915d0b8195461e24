package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/eensymachines/qrbot/dedup"
	"github.com/eensymachines/qrbot/models"
	"github.com/eensymachines/qrbot/telegram"
	"github.com/stretchr/testify/assert"
)

// -------- fakes standing in for the collaborators

type action struct {
	kind  string // message / contact
	chat  string
	text  string
	phone string
	name  string
	opts  telegram.SendOpts
}

type fakeBot struct {
	actions   []action
	file      []byte
	downloads int
	failNext  error
}

func (fb *fakeBot) SendMessage(_ context.Context, chat, text string, opts telegram.SendOpts) error {
	if fb.failNext != nil {
		err := fb.failNext
		fb.failNext = nil
		return err
	}
	fb.actions = append(fb.actions, action{kind: "message", chat: chat, text: text, opts: opts})
	return nil
}

func (fb *fakeBot) SendContact(_ context.Context, chat, phone, name string, opts telegram.SendOpts) error {
	fb.actions = append(fb.actions, action{kind: "contact", chat: chat, phone: phone, name: name, opts: opts})
	return nil
}

func (fb *fakeBot) DownloadFile(_ context.Context, _ string) ([]byte, error) {
	fb.downloads++
	return fb.file, nil
}

type fakeDecoder struct {
	payload string
	err     error
}

func (fd fakeDecoder) Decode(_ []byte) (string, error) { return fd.payload, fd.err }

type fakeBroker struct {
	keys   []string
	bodies [][]byte
}

func (fb *fakeBroker) Publish(key string, byt []byte) error {
	fb.keys = append(fb.keys, key)
	fb.bodies = append(fb.bodies, byt)
	return nil
}

// -------- helpers building inbound updates

func textUpdate(id int64, text string) *models.Update {
	return &models.Update{
		UpdtID: json.Number(fmt.Sprintf("%d", id)),
		Message: models.UpdateMessage{
			MsgId: "42",
			Chat:  models.Chat{ChatID: "5157350442", Typ: "private"},
			Text:  text,
		},
	}
}

func photoUpdate(id int64, w, h int) *models.Update {
	return &models.Update{
		UpdtID: json.Number(fmt.Sprintf("%d", id)),
		Message: models.UpdateMessage{
			MsgId: "42",
			Chat:  models.Chat{ChatID: "5157350442", Typ: "private"},
			Photo: []models.PhotoSize{
				{FileID: "small", Width: 90, Height: 90},
				{FileID: "large", Width: w, Height: h},
			},
		},
	}
}

func testGateway(bot *fakeBot, dec fakeDecoder, brk *fakeBroker) (*Gateway, *dedup.MemoryMarker) {
	marker := dedup.NewMemoryMarker()
	gw := &Gateway{
		BotUID:       "6133190482",
		Marker:       marker,
		Bot:          bot,
		Decoder:      dec,
		MaxPhotoSize: 1280,
	}
	if brk != nil {
		gw.Broker = brk
	}
	return gw, marker
}

// -------- text routing

func TestCommandReply(t *testing.T) {
	bot := &fakeBot{}
	gw, marker := testGateway(bot, fakeDecoder{}, nil)

	gw.Handle(context.Background(), textUpdate(100, "/about"))

	latest, _ := marker.Latest("6133190482")
	assert.Equal(t, int64(100), latest, "Marker has to advance to the processed id")
	assert.Len(t, bot.actions, 1, "Exactly one fixed reply per recognized command")
	assert.Equal(t, "message", bot.actions[0].kind)
	assert.Equal(t, "Markdown", bot.actions[0].opts.ParseMode)
	assert.Equal(t, commands["/about"].text, bot.actions[0].text)
}

func TestEveryCommandMapped(t *testing.T) {
	for i, cmd := range []string{"/start", "/about", "/app"} {
		bot := &fakeBot{}
		gw, _ := testGateway(bot, fakeDecoder{}, nil)
		gw.Handle(context.Background(), textUpdate(int64(100+i), cmd))
		assert.Len(t, bot.actions, 1, "Command %s must map to exactly one reply", cmd)
	}
}

func TestUnrecognizedTextNoOp(t *testing.T) {
	bot := &fakeBot{}
	gw, marker := testGateway(bot, fakeDecoder{}, nil)

	gw.Handle(context.Background(), textUpdate(100, "what do you do?"))

	assert.Len(t, bot.actions, 0, "Free text produces zero outbound actions")
	latest, _ := marker.Latest("6133190482")
	assert.Equal(t, int64(100), latest, "No-op updates still advance the marker")
}

func TestEmptyMessageNoOp(t *testing.T) {
	bot := &fakeBot{}
	gw, _ := testGateway(bot, fakeDecoder{}, nil)
	upd := textUpdate(100, "")
	gw.Handle(context.Background(), upd)
	assert.Len(t, bot.actions, 0, "Message with neither text nor photo silently succeeds")
}

// -------- duplicate suppression

func TestDuplicateDeliverySilent(t *testing.T) {
	bot := &fakeBot{}
	gw, marker := testGateway(bot, fakeDecoder{}, nil)
	ctx := context.Background()

	gw.Handle(ctx, textUpdate(101, "/start"))
	assert.Len(t, bot.actions, 1)

	// the very same update redelivered - zero further actions, marker unchanged
	gw.Handle(ctx, textUpdate(101, "/start"))
	assert.Len(t, bot.actions, 1, "Redelivery may never produce a second set of replies")
	latest, _ := marker.Latest("6133190482")
	assert.Equal(t, int64(101), latest)

	// a late lower id after a newer one - also silent
	gw.Handle(ctx, textUpdate(100, "/start"))
	assert.Len(t, bot.actions, 1, "Late lower ids are skipped before any reply is sent")
}

// -------- photo pipeline

func TestOversizePhoto(t *testing.T) {
	bot := &fakeBot{}
	gw, marker := testGateway(bot, fakeDecoder{payload: "never reached"}, nil)

	gw.Handle(context.Background(), photoUpdate(101, 2000, 1500))

	assert.Len(t, bot.actions, 1, "Exactly one reply for an oversize photo")
	assert.Contains(t, bot.actions[0].text, "1280", "Size limit message names the configured limit")
	assert.Equal(t, 0, bot.downloads, "No download may be attempted for oversize photos")
	latest, _ := marker.Latest("6133190482")
	assert.Equal(t, int64(101), latest, "Marker advances even when the photo is rejected")
}

func TestOversizeSingleDimension(t *testing.T) {
	// the limit applies to width and height independently
	bot := &fakeBot{}
	gw, _ := testGateway(bot, fakeDecoder{}, nil)
	gw.Handle(context.Background(), photoUpdate(101, 100, 2000))
	assert.Len(t, bot.actions, 1)
	assert.Equal(t, 0, bot.downloads)
}

func TestPhotoNoCode(t *testing.T) {
	bot := &fakeBot{file: []byte{0x01}}
	gw, _ := testGateway(bot, fakeDecoder{payload: ""}, nil)

	gw.Handle(context.Background(), photoUpdate(102, 800, 600))

	assert.Equal(t, 1, bot.downloads)
	assert.Len(t, bot.actions, 2)
	assert.Equal(t, replyDecoding, bot.actions[0].text)
	assert.Equal(t, replyNoCode, bot.actions[1].text)
	assert.Equal(t, "42", bot.actions[1].opts.ReplyTo, "The verdict goes out as a reply to the original message")
}

func TestPhotoPlainPayload(t *testing.T) {
	brk := &fakeBroker{}
	bot := &fakeBot{file: []byte{0x01}}
	gw, _ := testGateway(bot, fakeDecoder{payload: "https://eensymachines.in"}, brk)

	gw.Handle(context.Background(), photoUpdate(102, 800, 600))

	assert.Len(t, bot.actions, 3)
	assert.Equal(t, replyDecoding, bot.actions[0].text)
	assert.Equal(t, replyFoundText, bot.actions[1].text, "Announcement precedes the payload")
	assert.Equal(t, "https://eensymachines.in", bot.actions[2].text)
	assert.Equal(t, "42", bot.actions[2].opts.ReplyTo)

	// decode event went out on the broker under the bots routing key
	assert.Equal(t, []string{"6133190482.decodes"}, brk.keys)
	evt := DecodeEvent{}
	assert.Nil(t, json.Unmarshal(brk.bodies[0], &evt))
	assert.Equal(t, int64(102), evt.UpdateID)
	assert.False(t, evt.IsContact)
}

func TestPhotoContactPayload(t *testing.T) {
	vcf := strings.Join([]string{
		"BEGIN:VCARD",
		"VERSION:3.0",
		"FN:Jane Doe",
		"TEL:+4915112345678",
		"END:VCARD",
		"",
	}, "\r\n")
	brk := &fakeBroker{}
	bot := &fakeBot{file: []byte{0x01}}
	gw, _ := testGateway(bot, fakeDecoder{payload: vcf}, brk)

	gw.Handle(context.Background(), photoUpdate(103, 800, 600))

	assert.Len(t, bot.actions, 3)
	assert.Equal(t, replyFoundContact, bot.actions[1].text)
	assert.Equal(t, "contact", bot.actions[2].kind)
	assert.Equal(t, "Jane Doe", bot.actions[2].name)
	assert.Equal(t, "+4915112345678", bot.actions[2].phone)
	assert.Equal(t, vcf, bot.actions[2].opts.VCard, "Raw payload rides along with the contact")
	assert.Equal(t, "42", bot.actions[2].opts.ReplyTo)

	evt := DecodeEvent{}
	assert.Nil(t, json.Unmarshal(brk.bodies[0], &evt))
	assert.True(t, evt.IsContact)
}

func TestPhotoContactDefaults(t *testing.T) {
	// card with blank name and no phone - placeholders kick in
	vcf := "BEGIN:VCARD\r\nVERSION:3.0\r\nFN: \r\nEND:VCARD\r\n"
	bot := &fakeBot{file: []byte{0x01}}
	gw, _ := testGateway(bot, fakeDecoder{payload: vcf}, nil)

	gw.Handle(context.Background(), photoUpdate(103, 800, 600))

	assert.Equal(t, "contact", bot.actions[2].kind)
	assert.Equal(t, "Unknown", bot.actions[2].name)
	assert.Equal(t, "+000000000000", bot.actions[2].phone)
}

func TestNoBrokerNoPanic(t *testing.T) {
	bot := &fakeBot{file: []byte{0x01}}
	gw, _ := testGateway(bot, fakeDecoder{payload: "hello"}, nil)
	gw.Handle(context.Background(), photoUpdate(102, 800, 600))
	assert.Len(t, bot.actions, 3, "Missing broker only switches the fan out off")
}

// -------- failure policy

func TestDecodeFailureGenericMessage(t *testing.T) {
	bot := &fakeBot{file: []byte{0x01}}
	gw, _ := testGateway(bot, fakeDecoder{err: fmt.Errorf("failed to decode image bytes")}, nil)

	gw.Handle(context.Background(), photoUpdate(104, 800, 600))

	// in-progress notice went out, then the generic failure notice - never a transport error
	last := bot.actions[len(bot.actions)-1]
	assert.Equal(t, replyTrouble, last.text, "Collaborator failures end in the single generic message")
}

func TestSendFailureDoesNotCascade(t *testing.T) {
	// the first send blows up, the recovery point still manages the failure notice
	bot := &fakeBot{file: []byte{0x01}, failNext: fmt.Errorf("telegram server refused sendMessage")}
	gw, _ := testGateway(bot, fakeDecoder{}, nil)
	gw.Handle(context.Background(), photoUpdate(105, 800, 600))
	assert.Len(t, bot.actions, 1)
	assert.Equal(t, replyTrouble, bot.actions[0].text)
}

func TestMalformedUpdateDropped(t *testing.T) {
	bot := &fakeBot{}
	gw, _ := testGateway(bot, fakeDecoder{}, nil)
	upd := textUpdate(100, "/start")
	upd.UpdtID = "not-a-number"
	gw.Handle(context.Background(), upd)
	assert.Len(t, bot.actions, 0, "Malformed update ids are dropped without any reply")
}
