package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/transvox/transvox/internal/i18n"
	"github.com/transvox/transvox/internal/models"
	"github.com/transvox/transvox/internal/pipeline"
	"github.com/transvox/transvox/internal/quota"
)

const (
	subscriptionPayload = "premium_subscription"

	// transcriptionPreviewRunes caps how much of the transcript goes into
	// the prompt message; the full text still reaches the translator.
	transcriptionPreviewRunes = 1000
)

// Bot maps Telegram updates onto pipeline events and pipeline outcomes back
// onto localized messages. It also serves as the pipeline's Notifier for the
// async worker half.
type Bot struct {
	client *Client
	pipe   *pipeline.Pipeline
	quota  *quota.Service

	priceStars int
	maxSizeMB  int64
	logger     zerolog.Logger
}

func NewBot(client *Client, q *quota.Service, priceStars int, maxSizeBytes int64, logger zerolog.Logger) *Bot {
	return &Bot{
		client:     client,
		quota:      q,
		priceStars: priceStars,
		maxSizeMB:  maxSizeBytes / (1024 * 1024),
		logger:     logger.With().Str("service", "bot").Logger(),
	}
}

// Attach wires in the pipeline after construction; the pipeline itself holds
// the bot as its Notifier. The worker process never attaches one, it only
// uses the Notifier half.
func (b *Bot) Attach(pipe *pipeline.Pipeline) { b.pipe = pipe }

func (b *Bot) price() string { return strconv.Itoa(b.priceStars) }

// HandleUpdate routes one inbound update. Safe to call concurrently; the
// pipeline serializes per-user session transitions itself.
func (b *Bot) HandleUpdate(ctx context.Context, u Update) {
	switch {
	case u.Message != nil && u.Message.SuccessfulPayment != nil:
		b.handlePayment(ctx, u.Message)
	case u.Message != nil:
		b.handleMessage(ctx, u.Message)
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	case u.PreCheckoutQuery != nil:
		b.handlePreCheckout(ctx, u.PreCheckoutQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *Message) {
	if msg.From == nil {
		return
	}
	user := msg.From
	locale := user.LanguageCode

	if err := b.quota.RegisterContact(ctx, &models.User{
		UserID:       user.ID,
		Username:     user.Username,
		FirstName:    user.FirstName,
		LanguageCode: locale,
	}); err != nil {
		b.logger.Error().Err(err).Int64("user_id", user.ID).Msg("user upsert failed")
	}

	fileRef, filename, size, hasMedia := mediaFromMessage(msg)
	switch {
	case strings.HasPrefix(msg.Text, "/start"):
		b.handleStart(ctx, msg.Chat.ID, user.ID, locale)
	case strings.HasPrefix(msg.Text, "/help"):
		b.send(ctx, msg.Chat.ID, i18n.Get(locale, "help", "price", b.price()), nil)
	case hasMedia:
		b.handleMedia(ctx, msg.Chat.ID, user.ID, locale, fileRef, filename, size)
	default:
		b.send(ctx, msg.Chat.ID, i18n.Get(locale, "send_file_hint"), nil)
	}
}

func (b *Bot) handleStart(ctx context.Context, chatID, userID int64, locale string) {
	remaining := "0"
	dec, err := b.pipe.Entitlement(ctx, userID)
	if err == nil {
		if dec.Class == quota.ClassPremium {
			remaining = "∞"
		} else {
			remaining = strconv.Itoa(dec.Remaining)
		}
	}
	b.send(ctx, chatID, i18n.Get(locale, "start", "free_requests", remaining), nil)
}

func (b *Bot) handleMedia(ctx context.Context, chatID, userID int64, locale, fileRef, filename string, size int64) {
	_, err := b.pipe.EnqueueMedia(ctx, pipeline.MediaReceived{
		UserID:    userID,
		ChatID:    chatID,
		FileRef:   fileRef,
		Filename:  filename,
		SizeBytes: size,
		Locale:    locale,
	})
	if err != nil {
		b.sendFailure(ctx, chatID, locale, pipeline.KindOf(err))
		return
	}
	b.send(ctx, chatID, i18n.Get(locale, "processing"), nil)
}

func (b *Bot) handleCallback(ctx context.Context, cb *CallbackQuery) {
	locale := cb.From.LanguageCode
	chatID := cb.From.ID
	var messageID int64
	if cb.Message != nil {
		chatID = cb.Message.Chat.ID
		messageID = cb.Message.MessageID
	}

	switch {
	case strings.HasPrefix(cb.Data, "translate_"):
		b.answerCallback(ctx, cb.ID, "")
		b.handleTranslate(ctx, cb.From.ID, chatID, messageID, locale, strings.TrimPrefix(cb.Data, "translate_"))
	case cb.Data == "cancel":
		if err := b.pipe.HandleCancel(ctx, cb.From.ID); err != nil {
			b.logger.Debug().Err(err).Int64("user_id", cb.From.ID).Msg("cancel with no live session")
		}
		if messageID != 0 {
			if err := b.client.DeleteMessage(ctx, chatID, messageID); err != nil {
				b.logger.Warn().Err(err).Msg("delete message failed")
			}
		}
		b.answerCallback(ctx, cb.ID, "")
	case cb.Data == "subscribe":
		b.handleSubscribe(ctx, cb.From.ID, chatID, locale)
		b.answerCallback(ctx, cb.ID, "")
	default:
		b.answerCallback(ctx, cb.ID, "")
	}
}

func (b *Bot) handleTranslate(ctx context.Context, userID, chatID, messageID int64, locale, langCode string) {
	langName := i18n.LanguageName(langCode)
	b.edit(ctx, chatID, messageID, i18n.Get(locale, "translating", "language", langName), nil)

	res, err := b.pipe.HandleLanguage(ctx, pipeline.LanguageChosen{
		UserID:       userID,
		ChatID:       chatID,
		LanguageCode: langCode,
		LanguageName: langName,
	})
	if err != nil {
		b.edit(ctx, chatID, messageID, i18n.Get(locale, kindMessageKey(pipeline.KindOf(err))), nil)
		return
	}
	b.edit(ctx, chatID, messageID,
		i18n.Get(locale, "translation_complete", "language", langName, "translation", res.Translation), nil)
}

func (b *Bot) handleSubscribe(ctx context.Context, userID, chatID int64, locale string) {
	err := b.client.SendStarsInvoice(ctx, chatID,
		"TransVox Premium",
		i18n.Get(locale, "premium_user"),
		subscriptionPayload,
		b.priceStars,
	)
	if err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("invoice failed")
		b.send(ctx, chatID, i18n.Get(locale, "subscription_failed"), nil)
	}
}

func (b *Bot) handlePreCheckout(ctx context.Context, q *PreCheckoutQuery) {
	ok := q.InvoicePayload == subscriptionPayload
	msg := ""
	if !ok {
		msg = "unknown product"
	}
	if err := b.client.AnswerPreCheckoutQuery(ctx, q.ID, ok, msg); err != nil {
		b.logger.Error().Err(err).Str("query_id", q.ID).Msg("pre-checkout answer failed")
	}
}

func (b *Bot) handlePayment(ctx context.Context, msg *Message) {
	if msg.From == nil {
		return
	}
	locale := msg.From.LanguageCode
	pay := msg.SuccessfulPayment

	err := b.pipe.HandlePayment(ctx, pipeline.PaymentConfirmed{
		UserID:   msg.From.ID,
		ChargeID: pay.TelegramPaymentChargeID,
		Amount:   pay.TotalAmount,
		Payload:  pay.InvoicePayload,
	})
	if err != nil {
		b.send(ctx, msg.Chat.ID, i18n.Get(locale, "subscription_failed"), nil)
		return
	}
	b.send(ctx, msg.Chat.ID, i18n.Get(locale, "subscription_success"), nil)
}

// Transcribing implements pipeline.Notifier.
func (b *Bot) Transcribing(ctx context.Context, chatID int64, locale string) {
	b.send(ctx, chatID, i18n.Get(locale, "transcribing"), nil)
}

// TranscriptionReady implements pipeline.Notifier: transcript preview plus
// the target-language keyboard.
func (b *Bot) TranscriptionReady(ctx context.Context, chatID int64, locale, transcription string) {
	preview := transcription
	if runes := []rune(preview); len(runes) > transcriptionPreviewRunes {
		preview = string(runes[:transcriptionPreviewRunes]) + "..."
	}
	b.send(ctx, chatID,
		i18n.Get(locale, "transcription_complete", "transcription", preview),
		b.languageKeyboard(locale))
}

// Failed implements pipeline.Notifier.
func (b *Bot) Failed(ctx context.Context, chatID int64, locale string, kind pipeline.Kind) {
	b.sendFailure(ctx, chatID, locale, kind)
}

func (b *Bot) sendFailure(ctx context.Context, chatID int64, locale string, kind pipeline.Kind) {
	var markup *InlineKeyboardMarkup
	if kind == pipeline.KindQuotaDenied {
		markup = b.subscribeKeyboard(locale)
	}
	text := i18n.Get(locale, kindMessageKey(kind))
	if kind == pipeline.KindQuotaDenied || kind == pipeline.KindFileTooLarge {
		text = i18n.Get(locale, kindMessageKey(kind),
			"price", b.price(),
			"max_size", strconv.FormatInt(b.maxSizeMB, 10))
	}
	b.send(ctx, chatID, text, markup)
}

func kindMessageKey(kind pipeline.Kind) string {
	switch kind {
	case pipeline.KindQuotaDenied:
		return "limit_reached"
	case pipeline.KindSessionBusy:
		return "session_busy"
	case pipeline.KindSessionExpired:
		return "session_expired"
	case pipeline.KindFileTooLarge:
		return "file_too_large"
	case pipeline.KindUnsupportedFormat:
		return "unsupported_format"
	case pipeline.KindEmptyTranscription:
		return "no_transcription"
	case pipeline.KindCollaboratorFailure, pipeline.KindStoreUnavailable:
		return "processing_error"
	default:
		return "processing_error"
	}
}

// languageKeyboard lays out target languages two per row, skipping the
// user's own locale, with a cancel row at the bottom.
func (b *Bot) languageKeyboard(locale string) *InlineKeyboardMarkup {
	var rows [][]InlineKeyboardButton
	var row []InlineKeyboardButton
	for _, code := range i18n.LanguageOrder {
		if code == locale {
			continue
		}
		row = append(row, InlineKeyboardButton{
			Text:         i18n.LanguageName(code),
			CallbackData: "translate_" + code,
		})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []InlineKeyboardButton{{
		Text:         i18n.Get(locale, "cancel"),
		CallbackData: "cancel",
	}})
	return &InlineKeyboardMarkup{InlineKeyboard: rows}
}

func (b *Bot) subscribeKeyboard(locale string) *InlineKeyboardMarkup {
	return &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{{
		{
			Text:         i18n.Get(locale, "subscribe_button", "price", b.price()),
			CallbackData: "subscribe",
		},
	}}}
}

func (b *Bot) answerCallback(ctx context.Context, id, text string) {
	if err := b.client.AnswerCallbackQuery(ctx, id, text); err != nil {
		b.logger.Debug().Err(err).Msg("callback answer failed")
	}
}

func (b *Bot) send(ctx context.Context, chatID int64, text string, markup *InlineKeyboardMarkup) {
	if _, err := b.client.SendMessage(ctx, chatID, text, markup); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("send failed")
	}
}

func (b *Bot) edit(ctx context.Context, chatID, messageID int64, text string, markup *InlineKeyboardMarkup) {
	if messageID == 0 {
		b.send(ctx, chatID, text, markup)
		return
	}
	if err := b.client.EditMessageText(ctx, chatID, messageID, text, markup); err != nil {
		b.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("edit failed, sending new message")
		b.send(ctx, chatID, text, markup)
	}
}

// mediaFromMessage extracts the file reference of whichever media payload is
// present, synthesizing filenames the way the platform leaves them blank.
func mediaFromMessage(msg *Message) (fileRef, filename string, size int64, ok bool) {
	switch {
	case msg.Audio != nil:
		name := msg.Audio.FileName
		if name == "" {
			name = fmt.Sprintf("audio_%s.mp3", msg.Audio.FileID)
		}
		return msg.Audio.FileID, name, msg.Audio.FileSize, true
	case msg.Video != nil:
		name := msg.Video.FileName
		if name == "" {
			name = fmt.Sprintf("video_%s.mp4", msg.Video.FileID)
		}
		return msg.Video.FileID, name, msg.Video.FileSize, true
	case msg.Document != nil:
		name := msg.Document.FileName
		if name == "" {
			name = fmt.Sprintf("document_%s", msg.Document.FileID)
		}
		return msg.Document.FileID, name, msg.Document.FileSize, true
	case msg.Voice != nil:
		return msg.Voice.FileID, fmt.Sprintf("voice_%s.ogg", msg.Voice.FileID), msg.Voice.FileSize, true
	case msg.VideoNote != nil:
		return msg.VideoNote.FileID, fmt.Sprintf("video_note_%s.mp4", msg.VideoNote.FileID), msg.VideoNote.FileSize, true
	}
	return "", "", 0, false
}
