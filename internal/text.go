package internal

import "strings"

// MessageWelcome is sent when a user starts the bot.
const MessageWelcome = "Hi! Send me the name of a Telegram sticker pack, or a link to it, " +
	"and I will convert it into archives you can add to TamTam."

const (
	MessageSetNotFound    = "Sticker pack *{name}* was not found. Check the name and try again."
	MessageSetInProgress  = "Found sticker pack {name}, converting it now. This can take a minute."
	MessageError          = "Something went wrong while converting the sticker pack. Please try again later."
	MessageSuccess        = "Done! Here are your stickers."
	MessageManyStickers   = "The pack is large so it has been split into several archives. They will arrive one by one."
	MessageRetryExhausted = "Could not upload the file to TamTam, please try again."
)

const addStickersPrefix = "/addstickers/"

func formatPackMessage(message, name string) string {
	return strings.ReplaceAll(message, "{name}", name)
}

// packNameFromText returns the pack name from a message. Links of the form
// https://t.me/addstickers/<name> are accepted as well as plain names.
func packNameFromText(text string) string {
	text = strings.TrimSpace(text)

	if i := strings.Index(text, addStickersPrefix); i >= 0 {
		text = text[i+len(addStickersPrefix):]
	}

	if i := strings.IndexAny(text, "/?# \n"); i >= 0 {
		text = text[:i]
	}

	return text
}
