package application

import "strings"

const helpText = "🤖 Available commands:\n/help - Show this message\n/ping - Check the bot\n/status - Bot status"

// autoReplyFor devuelve la respuesta del bot para comandos y saludos conocidos.
// Cualquier otro texto no tiene respuesta.
func autoReplyFor(tenantID, text string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "hi", "hello", "hey", "hola":
		return "👋 Hello! Send /help for commands.", true
	case "/help":
		return helpText, true
	case "/ping":
		return "🏓 Pong!", true
	case "/status":
		return "✅ Bot is active!\nTenant: " + tenantID, true
	}
	return "", false
}
