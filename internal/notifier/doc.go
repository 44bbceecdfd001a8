// Package notifier announces talks that a crawl created or changed.
//
// A Notifier receives the crawl's changes and posts them to one channel:
// stdout (dry run), a Telegram chat or a Twitter account. Twitter posts are
// signed with OAuth 1.0a and spaced out to respect rate limits.
package notifier
