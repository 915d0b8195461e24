// Contact payloads decoded from QR codes. Parsing of the vcard text is delegated
// to emersion/go-vcard, this package only recognizes the payload and pulls the
// two properties the bot replies with.
package contacts

import (
	"fmt"
	"strings"

	"github.com/emersion/go-vcard"
)

const (
	vcardPrefix = "BEGIN:VCARD"
	// placeholders used when the card carries no usable name / number
	DefaultName  = "Unknown"
	DefaultPhone = "+000000000000"
)

// IsContact : a decoded payload carrying a structured contact record
func IsContact(payload string) bool {
	return strings.HasPrefix(payload, vcardPrefix)
}

// Parse hands the payload to the vcard decoder.
func Parse(payload string) (vcard.Card, error) {
	card, err := vcard.NewDecoder(strings.NewReader(payload)).Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to parse vcard payload: %w", err)
	}
	return card, nil
}

// lastNonBlank : cards can repeat a field, later non blank entries overwrite earlier ones
func lastNonBlank(fields []*vcard.Field, fallback string) string {
	result := fallback
	for _, f := range fields {
		if f != nil && strings.TrimSpace(f.Value) != "" {
			result = f.Value
		}
	}
	return result
}

// Properties : the display name and telephone number of the card.
// Missing or all-blank fields fall back to the fixed placeholders.
func Properties(card vcard.Card) (name string, phone string) {
	name = lastNonBlank(card[vcard.FieldFormattedName], DefaultName)
	phone = lastNonBlank(card[vcard.FieldTelephone], DefaultPhone)
	return
}
