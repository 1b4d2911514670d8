// Package i18n holds the localized user-facing strings. The pipeline only
// ever reports message kinds; picking the wording happens here, at the
// transport edge.
package i18n

import "strings"

// Languages maps target-language codes to their native display names. The
// keyboard shows these names and the translator receives them verbatim.
var Languages = map[string]string{
	"en": "English",
	"ru": "Русский",
	"es": "Español",
	"fr": "Français",
	"de": "Deutsch",
	"it": "Italiano",
	"pt": "Português",
	"zh": "中文",
	"ja": "日本語",
	"ko": "한국어",
	"ar": "العربية",
	"hi": "हिन्दी",
}

// LanguageOrder fixes the keyboard layout; map iteration order would shuffle
// buttons between messages.
var LanguageOrder = []string{
	"en", "ru", "es", "fr", "de", "it", "pt", "zh", "ja", "ko", "ar", "hi",
}

// LanguageName returns the display name for a code, falling back to the code
// itself.
func LanguageName(code string) string {
	if name, ok := Languages[code]; ok {
		return name
	}
	return code
}

var messages = map[string]map[string]string{
	"en": {
		"start":                  "🎵 Welcome to Audio/Video Transcription Bot!\n\nI can transcribe and translate your audio/video files.\n\n📊 You have {free_requests} free request(s) remaining today.\n\n📎 Send me an audio or video file to get started!",
		"help":                   "📋 How to use:\n1. Send me an audio or video file\n2. I'll transcribe it automatically\n3. Choose your target language\n4. Get the translation!\n\n💎 Premium: Unlimited requests for {price} ⭐ per month",
		"processing":             "🔄 Processing your file...",
		"transcribing":           "🎤 Transcribing audio...",
		"transcription_complete": "✅ Transcription complete!\n\n📝 Original text:\n{transcription}\n\n🌐 Choose target language for translation:",
		"translating":            "🌐 Translating to {language}...",
		"translation_complete":   "✅ Translation complete!\n\n🌐 {language} translation:\n{translation}",
		"file_too_large":         "❌ File too large! Maximum size: {max_size}MB",
		"unsupported_format":     "❌ Unsupported file format! Supported: audio/video files",
		"processing_error":       "❌ Error processing file. Please try again.",
		"no_transcription":       "❌ Could not transcribe audio. Please ensure it contains speech.",
		"translation_failed":     "❌ Translation failed. Please try again.",
		"limit_reached":          "🚫 Daily limit reached!\n\n💎 Subscribe for unlimited access: {price} ⭐ per month",
		"session_expired":        "Session expired. Please send the file again.",
		"session_busy":           "⏳ Please finish your current selection first (or press Cancel).",
		"premium_user":           "💎 Premium user - unlimited requests!",
		"subscribe_button":       "💎 Subscribe ({price} ⭐)",
		"subscription_success":   "🎉 Subscription successful! You now have unlimited access!",
		"subscription_failed":    "❌ Subscription failed. Please try again.",
		"send_file_hint":         "📎 Please send me an audio or video file to transcribe and translate!\n\nUse /help for more information.",
		"cancel":                 "Cancel",
	},
	"ru": {
		"start":                  "🎵 Добро пожаловать в бот транскрибации аудио/видео!\n\nЯ могу расшифровать и перевести ваши аудио/видео файлы.\n\n📊 У вас осталось {free_requests} бесплатных запроса(ов) на сегодня.\n\n📎 Отправьте мне аудио или видео файл для начала!",
		"help":                   "📋 Как пользоваться:\n1. Отправьте мне аудио или видео файл\n2. Я автоматически расшифрую его\n3. Выберите целевой язык\n4. Получите перевод!\n\n💎 Премиум: Безлимитные запросы за {price} ⭐ в месяц",
		"processing":             "🔄 Обработка вашего файла...",
		"transcribing":           "🎤 Расшифровка аудио...",
		"transcription_complete": "✅ Расшифровка завершена!\n\n📝 Оригинальный текст:\n{transcription}\n\n🌐 Выберите язык для перевода:",
		"translating":            "🌐 Перевод на {language}...",
		"translation_complete":   "✅ Перевод завершен!\n\n🌐 Перевод на {language}:\n{translation}",
		"file_too_large":         "❌ Файл слишком большой! Максимальный размер: {max_size}МБ",
		"unsupported_format":     "❌ Неподдерживаемый формат! Поддерживаются: аудио/видео файлы",
		"processing_error":       "❌ Ошибка обработки файла. Попробуйте снова.",
		"no_transcription":       "❌ Не удалось расшифровать аудио. Убедитесь, что оно содержит речь.",
		"translation_failed":     "❌ Перевод не удался. Попробуйте снова.",
		"limit_reached":          "🚫 Дневной лимит исчерпан!\n\n💎 Подпишитесь для безлимитного доступа: {price} ⭐ в месяц",
		"session_expired":        "Сессия истекла. Отправьте файл снова.",
		"session_busy":           "⏳ Сначала завершите текущий выбор (или нажмите Отмена).",
		"premium_user":           "💎 Премиум пользователь - безлимитные запросы!",
		"subscribe_button":       "💎 Подписаться ({price} ⭐)",
		"subscription_success":   "🎉 Подписка успешна! Теперь у вас безлимитный доступ!",
		"subscription_failed":    "❌ Подписка не удалась. Попробуйте снова.",
		"send_file_hint":         "📎 Отправьте мне аудио или видео файл для расшифровки и перевода!\n\nИспользуйте /help для подробностей.",
		"cancel":                 "Отмена",
	},
	"es": {
		"start":                  "🎵 ¡Bienvenido al bot de transcripción de audio/video!\n\nPuedo transcribir y traducir tus archivos de audio/video.\n\n📊 Te quedan {free_requests} solicitud(es) gratuita(s) hoy.\n\n📎 ¡Envíame un archivo de audio o video para empezar!",
		"help":                   "📋 Cómo usar:\n1. Envíame un archivo de audio o video\n2. Lo transcribiré automáticamente\n3. Elige tu idioma objetivo\n4. ¡Obtén la traducción!\n\n💎 Premium: Solicitudes ilimitadas por {price} ⭐ al mes",
		"processing":             "🔄 Procesando tu archivo...",
		"transcribing":           "🎤 Transcribiendo audio...",
		"transcription_complete": "✅ ¡Transcripción completa!\n\n📝 Texto original:\n{transcription}\n\n🌐 Elige idioma objetivo para traducción:",
		"translating":            "🌐 Traduciendo a {language}...",
		"translation_complete":   "✅ ¡Traducción completa!\n\n🌐 Traducción al {language}:\n{translation}",
		"file_too_large":         "❌ ¡Archivo demasiado grande! Tamaño máximo: {max_size}MB",
		"unsupported_format":     "❌ ¡Formato no soportado! Soportados: archivos de audio/video",
		"processing_error":       "❌ Error procesando archivo. Inténtalo de nuevo.",
		"no_transcription":       "❌ No se pudo transcribir el audio. Asegúrate de que contenga habla.",
		"translation_failed":     "❌ Traducción falló. Inténtalo de nuevo.",
		"limit_reached":          "🚫 ¡Límite diario alcanzado!\n\n💎 Suscríbete para acceso ilimitado: {price} ⭐ por mes",
		"session_expired":        "Sesión expirada. Envía el archivo de nuevo.",
		"session_busy":           "⏳ Termina primero tu selección actual (o pulsa Cancelar).",
		"premium_user":           "💎 Usuario premium - ¡solicitudes ilimitadas!",
		"subscribe_button":       "💎 Suscribirse ({price} ⭐)",
		"subscription_success":   "🎉 ¡Suscripción exitosa! ¡Ahora tienes acceso ilimitado!",
		"subscription_failed":    "❌ Suscripción falló. Inténtalo de nuevo.",
		"send_file_hint":         "📎 ¡Envíame un archivo de audio o video para transcribir y traducir!\n\nUsa /help para más información.",
		"cancel":                 "Cancelar",
	},
}

// Get returns the localized message for key, substituting {placeholder}
// pairs given as name, value, name, value... Unknown locales fall back to
// English; unknown keys fall back to the key itself so a missing string is
// at least visible.
func Get(locale, key string, pairs ...string) string {
	catalog, ok := messages[locale]
	if !ok {
		catalog = messages["en"]
	}
	msg, ok := catalog[key]
	if !ok {
		msg, ok = messages["en"][key]
		if !ok {
			return key
		}
	}
	if len(pairs) == 0 {
		return msg
	}
	replacements := make([]string, 0, len(pairs))
	for i := 0; i+1 < len(pairs); i += 2 {
		replacements = append(replacements, "{"+pairs[i]+"}", pairs[i+1])
	}
	return strings.NewReplacer(replacements...).Replace(msg)
}
