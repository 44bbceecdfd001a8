// Package telegram sends talk notifications through the Telegram Bot API.
//
// The client posts HTML-formatted messages with plain net/http requests.
// Formatters render a single created or changed meeting, or a digest of a
// whole crawl grouped by listing page.
//
// Authentication requires a bot token (from @BotFather) and a chat ID.
package telegram
