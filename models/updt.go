package models

import (
	"encoding/json"
	"fmt"
)

type Sender struct {
	SenderID  json.Number `json:"id"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	UName     string      `json:"username"`
}
type Chat struct {
	ChatID json.Number `json:"id"`
	Typ    string      `json:"type"`
}

// PhotoSize is one resolution variant of a photo sent to the bot.
// Telegram sends the variants ordered smallest to largest, but we never rely on that.
type PhotoSize struct {
	FileID   string `json:"file_id"`
	UniqueID string `json:"file_unique_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int    `json:"file_size"`
}

type UpdateMessage struct {
	MsgId json.Number `json:"message_id"`
	From  Sender      `json:"from"`
	Chat  Chat        `json:"chat"`
	Text  string      `json:"text"`
	Photo []PhotoSize `json:"photo"`
}

// HasText : message carries a text body that the command table can match against
func (um *UpdateMessage) HasText() bool {
	return um.Text != ""
}

// HasPhoto : message carries at least one photo variant
func (um *UpdateMessage) HasPhoto() bool {
	return len(um.Photo) > 0
}

// LargestPhoto : picks the variant with the maximum pixel area.
// Selection is explicit by width x height, not by position in the slice.
// Call only when HasPhoto is true.
func (um *UpdateMessage) LargestPhoto() PhotoSize {
	largest := um.Photo[0]
	for _, ps := range um.Photo[1:] {
		if ps.Width*ps.Height > largest.Width*largest.Height {
			largest = ps
		}
	}
	return largest
}

type Update struct {
	UpdtID  json.Number   `json:"update_id"` //easier to deal with this as string, unless ofcourse you have a math operation on it
	Message UpdateMessage `json:"message"`
}

// ID : update_id as int64 for comparison against the dedup marker.
// Telegram update ids are well below 2^53, int64 is plenty.
func (u *Update) ID() (int64, error) {
	val, err := u.UpdtID.Int64()
	if err != nil {
		return 0, fmt.Errorf("update_id is not an integer: %s", u.UpdtID.String())
	}
	return val, nil
}

// File is the result of a getFile call, FilePath is what the actual byte download is keyed on
type File struct {
	FileID   string `json:"file_id"`
	FileSize int    `json:"file_size"`
	FilePath string `json:"file_path"`
}
