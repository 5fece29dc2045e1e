package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/dkoval/mailtriage/internal/database"
	"github.com/dkoval/mailtriage/internal/mailsource"
	"github.com/dkoval/mailtriage/internal/mailsource/imapsource"
	"github.com/dkoval/mailtriage/internal/pipeline"
	appmodels "github.com/dkoval/mailtriage/pkg/models"
)

// handleConnect handles /connect command
// Usage: /connect email password [imap_server:993]
func (b *Bot) handleConnect(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	msg := update.Message
	if !b.requirePrivateChat(ctx, msg) {
		return
	}

	parts := strings.Fields(msg.Text)
	if len(parts) < 3 || len(parts) > 4 {
		b.sendMessage(ctx, msg.Chat.ID,
			"Usage: <code>/connect email@example.com password</code>\nOr: <code>/connect email@example.com password imap.server.com:993</code>")
		return
	}

	emailAddr := parts[1]
	password := parts[2]

	// Delete the message with the password immediately
	if err := b.deleteMessage(ctx, msg.Chat.ID, msg.ID); err != nil {
		b.logger.Warn("failed to delete connect message", "error", err)
	}

	var imapServer string
	if len(parts) == 4 {
		imapServer = parts[3]
	} else {
		b.sendMessage(ctx, msg.Chat.ID, "Detecting IMAP server...")
		var err error
		imapServer, err = imapsource.ResolveServer(emailAddr)
		if err != nil {
			b.logger.Error("failed to resolve IMAP server", "error", err)
			b.sendMessage(ctx, msg.Chat.ID,
				fmt.Sprintf("Could not detect the IMAP server for %s.\nTry specifying it: <code>/connect email password imap.server.com:993</code>", emailAddr))
			return
		}
		b.logger.Info("resolved IMAP server", "email", emailAddr, "server", imapServer)
	}

	creds := mailsource.Credentials{
		Email:    emailAddr,
		Password: password,
		Server:   imapServer,
	}

	b.sendMessage(ctx, msg.Chat.ID, fmt.Sprintf("Checking the connection to %s...", imapServer))
	if err := b.verifyCredentials(ctx, appmodels.ProviderIMAP, creds); err != nil {
		b.logger.Error("connection test failed", "error", err)
		b.sendMessage(ctx, msg.Chat.ID, fmt.Sprintf("Connection failed: %v", err))
		return
	}

	b.createAccount(ctx, msg.Chat.ID, &appmodels.Account{
		UserID:   msg.From.ID,
		Email:    emailAddr,
		Provider: appmodels.ProviderIMAP,
		IsActive: true,
	}, creds)
}

// handleConnectGmail handles /connect_gmail command
// Usage: /connect_gmail email access_token refresh_token
func (b *Bot) handleConnectGmail(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	msg := update.Message
	if !b.requirePrivateChat(ctx, msg) {
		return
	}

	parts := strings.Fields(msg.Text)
	if len(parts) != 4 {
		b.sendMessage(ctx, msg.Chat.ID,
			"Usage: <code>/connect_gmail email@gmail.com access_token refresh_token</code>")
		return
	}

	emailAddr := parts[1]
	creds := mailsource.Credentials{
		Email:        emailAddr,
		AccessToken:  parts[2],
		RefreshToken: parts[3],
	}

	// Delete the message with the tokens immediately
	if err := b.deleteMessage(ctx, msg.Chat.ID, msg.ID); err != nil {
		b.logger.Warn("failed to delete connect message", "error", err)
	}

	b.sendMessage(ctx, msg.Chat.ID, "Checking Gmail access...")
	if err := b.verifyCredentials(ctx, appmodels.ProviderGmail, creds); err != nil {
		b.logger.Error("gmail access test failed", "error", err)
		b.sendMessage(ctx, msg.Chat.ID, fmt.Sprintf("Gmail access failed: %v", err))
		return
	}

	b.createAccount(ctx, msg.Chat.ID, &appmodels.Account{
		UserID:   msg.From.ID,
		Email:    emailAddr,
		Provider: appmodels.ProviderGmail,
		IsActive: true,
	}, creds)
}

// verifyCredentials runs a one-message list against the provider to
// prove the credential bundle works before it is stored.
func (b *Bot) verifyCredentials(ctx context.Context, provider appmodels.Provider, creds mailsource.Credentials) error {
	source, ok := b.sources[provider]
	if !ok {
		return fmt.Errorf("no source for provider %q", provider)
	}

	checkCtx, cancel := context.WithTimeout(ctx, b.config.ReadTimeout)
	defer cancel()

	_, err := source.List(checkCtx, creds, mailsource.ListOptions{
		MaxResults: 1,
		Scope:      mailsource.ScopeInbox,
	})
	return err
}

// createAccount encrypts the credentials and stores the account row.
func (b *Bot) createAccount(ctx context.Context, chatID int64, account *appmodels.Account, creds mailsource.Credentials) {
	blob, err := b.resolver.EncodeCredentials(creds)
	if err != nil {
		b.logger.Error("failed to encrypt credentials", "error", err)
		b.sendMessage(ctx, chatID, "Failed to encrypt the credentials.")
		return
	}
	account.Credentials = blob

	if err := b.db.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, database.ErrAlreadyExists) {
			b.sendMessage(ctx, chatID,
				fmt.Sprintf("<b>%s</b> is already connected. Use /accounts to list your accounts.", account.Email))
			return
		}
		b.logger.Error("failed to create account", "error", err)
		b.sendMessage(ctx, chatID, "Failed to save the account.")
		return
	}

	b.logger.Info("account connected",
		"account_id", account.ID,
		"user_id", account.UserID,
		"provider", account.Provider,
	)
	b.sendMessage(ctx, chatID,
		fmt.Sprintf("<b>%s</b> connected (id %d).\nTry <code>/filter urgent</code> or <code>/insights %d</code>.",
			account.Email, account.ID, account.ID))
}

// handleDisconnect handles /disconnect command
// Usage: /disconnect account_id
func (b *Bot) handleDisconnect(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	msg := update.Message
	if !b.requirePrivateChat(ctx, msg) {
		return
	}

	parts := strings.Fields(msg.Text)
	accountID, ok := parseID(parts, 1)
	if !ok {
		b.sendMessage(ctx, msg.Chat.ID, "Usage: <code>/disconnect account_id</code>\nSee /accounts for ids.")
		return
	}

	account, err := b.db.GetAccountForUser(ctx, msg.From.ID, accountID)
	if errors.Is(err, database.ErrNotFound) {
		b.sendMessage(ctx, msg.Chat.ID, "No such account.")
		return
	}
	if err != nil {
		b.logger.Error("failed to get account", "error", err)
		b.sendMessage(ctx, msg.Chat.ID, "Failed to look up the account.")
		return
	}

	if err := b.db.DeleteAccount(ctx, account.ID); err != nil {
		b.logger.Error("failed to delete account", "error", err)
		b.sendMessage(ctx, msg.Chat.ID, "Failed to remove the account.")
		return
	}

	b.logger.Info("account disconnected", "account_id", account.ID, "user_id", msg.From.ID)
	b.sendMessage(ctx, msg.Chat.ID, fmt.Sprintf("<b>%s</b> disconnected.", account.DisplayLabel()))
}

// handleAccounts handles /accounts command
func (b *Bot) handleAccounts(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	msg := update.Message
	if !b.requirePrivateChat(ctx, msg) {
		return
	}

	list, err := b.db.GetActiveAccountsByUserID(ctx, msg.From.ID)
	if err != nil {
		b.logger.Error("failed to list accounts", "error", err)
		b.sendMessage(ctx, msg.Chat.ID, "Failed to load your accounts.")
		return
	}

	b.sendMessage(ctx, msg.Chat.ID, b.formatter.FormatAccounts(list))
}

// handleFilter handles /filter command
// Usage: /filter task [count]
func (b *Bot) handleFilter(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	msg := update.Message

	parts := strings.Fields(msg.Text)
	if len(parts) < 2 {
		b.sendMessage(ctx, msg.Chat.ID, b.filterUsage())
		return
	}

	task, err := pipeline.ParseTask(strings.ToLower(parts[1]))
	if err != nil {
		b.sendMessage(ctx, msg.Chat.ID, b.filterUsage())
		return
	}

	count, ok := parseCount(parts, 2, 10)
	if !ok {
		b.sendMessage(ctx, msg.Chat.ID, "The count must be a positive number.")
		return
	}

	b.sendMessage(ctx, msg.Chat.ID, fmt.Sprintf("Scanning your accounts for <b>%s</b> emails...", task))

	runCtx, cancel := context.WithTimeout(ctx, b.config.FilterTimeout)
	defer cancel()

	res, err := b.orchestrator.FilterByCategory(runCtx, pipeline.NewRequestScope(), msg.From.ID, task, count)
	if err != nil {
		b.logger.Error("filter failed", "task", task, "user_id", msg.From.ID, "error", err)
		b.sendMessage(ctx, msg.Chat.ID, b.runError(err))
		return
	}

	b.sendMessage(ctx, msg.Chat.ID, b.formatter.FormatFilterResult(string(task), res))
}

func (b *Bot) filterUsage() string {
	names := make([]string, 0, len(pipeline.Tasks()))
	for _, t := range pipeline.Tasks() {
		names = append(names, string(t))
	}
	return fmt.Sprintf("Usage: <code>/filter task [count]</code>\nTasks: %s", strings.Join(names, ", "))
}

// handleSmart handles /smart command
// Usage: /smart account_id kind [count]
func (b *Bot) handleSmart(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	msg := update.Message

	parts := strings.Fields(msg.Text)
	accountID, ok := parseID(parts, 1)
	if !ok || len(parts) < 3 {
		b.sendMessage(ctx, msg.Chat.ID,
			"Usage: <code>/smart account_id kind [count]</code>\nExample: <code>/smart 2 travel</code>")
		return
	}

	kind := strings.ToLower(parts[2])
	count, ok := parseCount(parts, 3, 10)
	if !ok {
		b.sendMessage(ctx, msg.Chat.ID, "The count must be a positive number.")
		return
	}

	b.sendMessage(ctx, msg.Chat.ID, fmt.Sprintf("Filtering account %d for <b>%s</b> emails...", accountID, kind))

	runCtx, cancel := context.WithTimeout(ctx, b.config.FilterTimeout)
	defer cancel()

	res, err := b.orchestrator.SmartFilter(runCtx, pipeline.NewRequestScope(), msg.From.ID, accountID, kind, count)
	if err != nil {
		b.logger.Error("smart filter failed", "kind", kind, "account_id", accountID, "error", err)
		b.sendMessage(ctx, msg.Chat.ID, b.runError(err))
		return
	}

	b.sendMessage(ctx, msg.Chat.ID, b.formatter.FormatFilterResult(kind, res))
}

// handleCategories handles /categories command
// Usage: /categories account_id
func (b *Bot) handleCategories(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	msg := update.Message

	parts := strings.Fields(msg.Text)
	accountID, ok := parseID(parts, 1)
	if !ok {
		b.sendMessage(ctx, msg.Chat.ID, "Usage: <code>/categories account_id</code>\nSee /accounts for ids.")
		return
	}

	b.sendMessage(ctx, msg.Chat.ID, "Categorizing recent mail...")

	runCtx, cancel := context.WithTimeout(ctx, b.config.FilterTimeout)
	defer cancel()

	buckets, err := b.orchestrator.Categorize(runCtx, pipeline.NewRequestScope(), msg.From.ID, accountID)
	if err != nil {
		b.logger.Error("categorization failed", "account_id", accountID, "error", err)
		b.sendMessage(ctx, msg.Chat.ID, b.runError(err))
		return
	}

	b.sendMessage(ctx, msg.Chat.ID, b.formatter.FormatBuckets(buckets))
}

// handleInsights handles /insights command
// Usage: /insights account_id [days]
func (b *Bot) handleInsights(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	msg := update.Message

	parts := strings.Fields(msg.Text)
	accountID, ok := parseID(parts, 1)
	if !ok {
		b.sendMessage(ctx, msg.Chat.ID, "Usage: <code>/insights account_id [days]</code>")
		return
	}

	days, ok := parseCount(parts, 2, 7)
	if !ok {
		b.sendMessage(ctx, msg.Chat.ID, "The window must be a positive number of days.")
		return
	}

	b.sendMessage(ctx, msg.Chat.ID, fmt.Sprintf("Analyzing the last %d days...", days))

	runCtx, cancel := context.WithTimeout(ctx, b.config.FilterTimeout)
	defer cancel()

	report, err := b.orchestrator.Insights(runCtx, pipeline.NewRequestScope(), msg.From.ID, accountID, days)
	if err != nil {
		b.logger.Error("insights failed", "account_id", accountID, "error", err)
		b.sendMessage(ctx, msg.Chat.ID, b.runError(err))
		return
	}

	b.sendMessage(ctx, msg.Chat.ID, b.formatter.FormatInsights(report))
}

// runError maps a pipeline failure to a user-facing message.
func (b *Bot) runError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "That took longer than the time budget allows. Try a smaller count or try again later."
	}
	return "Something went wrong while processing your mail. Try again later."
}
