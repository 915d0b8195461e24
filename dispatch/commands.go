package dispatch

// Everything the bot ever says. Command replies are pure data - extending the
// bot with a new command is one more row in the table, not another conditional.

type command struct {
	text      string
	parseMode string
}

var commands = map[string]command{
	"/start": {
		text:      "Hello there! Send me a picture with a *QR code* in it and I will reply with whatever the code says. Codes carrying a contact card come back as a tappable contact.",
		parseMode: "Markdown",
	},
	"/about": {
		text:      "*QR decode bot* by eensymachines. Point your camera at a code, send the picture here, read the payload in chat. Built for the folks who dont trust random scanner apps with their camera roll.",
		parseMode: "Markdown",
	},
	"/app": {
		text:      "There is no app to install - this chat *is* the app. Forward or send any picture with a code and the bot does the rest.",
		parseMode: "Markdown",
	},
}

const (
	replyOversizeF    = "That picture is too large for me - keep both sides under %d pixels and send it again"
	replyDecoding     = "Got your picture, looking for a code in it.."
	replyNoCode       = "Sorry, that picture could not be decoded. Try a sharper shot with the code filling more of the frame"
	replyFoundText    = "Found a code in your picture, here is what it says:"
	replyFoundContact = "Found a contact card in your picture:"
	replyTrouble      = "There was a problem handling your message, please try again in a bit"
)
