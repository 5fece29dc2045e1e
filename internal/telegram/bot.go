package telegram

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/dkoval/mailtriage/internal/accounts"
	"github.com/dkoval/mailtriage/internal/config"
	"github.com/dkoval/mailtriage/internal/database"
	"github.com/dkoval/mailtriage/internal/formatter"
	"github.com/dkoval/mailtriage/internal/mailsource"
	"github.com/dkoval/mailtriage/internal/pipeline"
	appmodels "github.com/dkoval/mailtriage/pkg/models"
)

// Bot represents the Telegram bot
type Bot struct {
	bot          *bot.Bot
	db           *database.DB
	resolver     *accounts.Resolver
	orchestrator *pipeline.Orchestrator
	sources      map[appmodels.Provider]mailsource.Source
	formatter    *formatter.TelegramFormatter
	logger       *slog.Logger
	config       *config.Config
}

// BotDeps dependencies for creating a bot
type BotDeps struct {
	Config       *config.Config
	DB           *database.DB
	Resolver     *accounts.Resolver
	Orchestrator *pipeline.Orchestrator
	Sources      map[appmodels.Provider]mailsource.Source
	Formatter    *formatter.TelegramFormatter
	Logger       *slog.Logger
}

// NewBot creates a new Telegram bot
func NewBot(deps BotDeps) (*Bot, error) {
	b := &Bot{
		db:           deps.DB,
		resolver:     deps.Resolver,
		orchestrator: deps.Orchestrator,
		sources:      deps.Sources,
		formatter:    deps.Formatter,
		logger:       deps.Logger.With("component", "telegram_bot"),
		config:       deps.Config,
	}

	opts := []bot.Option{
		bot.WithDefaultHandler(b.defaultHandler),
	}

	tgBot, err := bot.New(deps.Config.TelegramToken, opts...)
	if err != nil {
		return nil, err
	}

	b.bot = tgBot
	b.registerHandlers()

	return b, nil
}

// registerHandlers registers command handlers
func (b *Bot) registerHandlers() {
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/connect_gmail", bot.MatchTypePrefix, b.handleConnectGmail)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/connect", bot.MatchTypePrefix, b.handleConnect)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/disconnect", bot.MatchTypePrefix, b.handleDisconnect)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/accounts", bot.MatchTypePrefix, b.handleAccounts)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/filter", bot.MatchTypePrefix, b.handleFilter)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/smart", bot.MatchTypePrefix, b.handleSmart)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/categories", bot.MatchTypePrefix, b.handleCategories)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/insights", bot.MatchTypePrefix, b.handleInsights)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, b.handleStart)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypePrefix, b.handleHelp)
}

// Start starts the bot
func (b *Bot) Start(ctx context.Context) {
	b.logger.Info("starting telegram bot")
	b.bot.Start(ctx)
}

// defaultHandler handles unknown messages
func (b *Bot) defaultHandler(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	if update.Message.Text != "" && update.Message.Text[0] == '/' {
		b.logger.Debug("unknown command", "text", update.Message.Text)
	}
}

// handleStart handles /start command
func (b *Bot) handleStart(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleHelp(ctx, tgBot, update)
}

// handleHelp handles /help command
func (b *Bot) handleHelp(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	msg := update.Message

	text := `<b>Mail Triage Bot</b>

Classifies and ranks mail across all of your connected accounts.

<b>Accounts:</b>
/connect email password - connect an IMAP mailbox
/connect_gmail email access_token refresh_token - connect Gmail via OAuth
/accounts - list connected accounts
/disconnect id - remove an account

<b>Triage:</b>
/filter task [count] - urgent, financial, leads or social, across all accounts
/smart account_id kind [count] - filter one account by any kind
/categories account_id - group recent mail into buckets
/insights account_id [days] - inbox analytics

<b>Examples:</b>
<code>/filter urgent 5</code>
<code>/smart 2 travel</code>
<code>/insights 2 14</code>

<b>Notes:</b>
- Account commands work in a private chat only
- For Gmail over IMAP use an app password
- The IMAP server is detected automatically`

	b.sendMessage(ctx, msg.Chat.ID, text)
}
