// Package cli implements the talkwatch command-line interface.
//
// The Cobra command tree registers listing pages (pages add|list|remove),
// runs one-off crawls (crawl), inspects stored talks (meetings
// list|show|history|ics|delete) and runs the cron trigger (schedule).
// crawl and schedule can announce created and changed talks through the
// notifier package.
// Every command loads settings through the config package, so flags,
// TALKWATCH_* variables and talkwatch.yaml all apply.
package cli
