package core

// prompts.go defines the Ukrainian prompts, keyboard labels and fixed
// answers used by the questionnaire.  Keeping them in one file makes the
// wording easy to tweak without touching the step graph.

const (
	// NotSpecified is the placeholder for a missing answer and the value a
	// skipped trauma detail is stored as.
	NotSpecified = "Не вказано"
	// NoneReported is the placeholder for the red-flag and comorbidity sections.
	NoneReported = "Немає"
	// DetailSeparator joins a parent answer with its appended detail.
	DetailSeparator = "\nДеталі: "

	AnswerYes     = "Так"
	AnswerNo      = "Ні"
	AnswerSkip    = "Пропустити"
	AnswerNoSport = "Не займаюся спортом"

	LabelConfirm    = "✅ Підтвердити"
	LabelEdit       = "✏️ Змінити дані"
	LabelCancel     = "❌ Скасувати"
	LabelBackToForm = "◀️ Назад до перевірки"

	greetingTemplate = "Вітаю, %s! 👋\n\n" +
		"Я допоможу вам заповнити анкету перед прийомом до мануального терапевта.\n\n" +
		"Це займе приблизно 5 хвилин. Ваші відповіді допоможуть лікарю краще підготуватися до прийому.\n\n" +
		"Натисніть /cancel щоб скасувати в будь-який момент.\n\n" +
		"Почнемо! 📋\n\n"

	reviewHeader   = "📋 ПЕРЕВІРТЕ ВАШІ ДАНІ:\n\n"
	reviewQuestion = "\n\nВсе правильно?"
	editMenuPrompt = "✏️ Оберіть, що ви хочете змінити:"

	CompletedMessage = "✅ Дякую! Анкету заповнено успішно.\n\n" +
		"Ваші дані відправлено лікарю. Очікуйте на підтвердження запису.\n\n" +
		"Бажаєте заповнити анкету заново? Натисніть /start"

	CancelledMessage = "❌ Анкетування скасовано.\n\n" +
		"Натисніть /start щоб почати заново."

	// StartHint answers messages that arrive without an active session.
	StartHint = "Натисніть /start щоб розпочати анкетування."
	// CommandHint answers commands the bot does not know.
	CommandHint = "Доступні команди:\n/start: розпочати анкетування\n/cancel: скасувати анкетування"

	// BriefInstruction asks the LLM for a short reviewer-only brief.
	BriefInstruction = "Лише українською. Ти асистент мануального терапевта. " +
		"На основі анкети пацієнта з болем у спині склади стислий огляд (до 80 слів): " +
		"головна скарга, тривалість, інтенсивність, ключові фактори. " +
		"Окремим рядком виділи червоні прапори, якщо вони є. Не став діагноз і не давай рекомендацій."
)

var (
	keyboardYesNo = [][]string{{AnswerYes, AnswerNo}}

	keyboardLocation = [][]string{
		{"Шия", "Грудний відділ"},
		{"Поперек", "Крижі"},
		{"Біль віддає у руку", "Біль віддає у ногу"},
	}
	keyboardOnset = [][]string{
		{"До 6 тижнів (гострий)"},
		{"6-12 тижнів (підгострий)"},
		{"Більше 3 місяців (хронічний)"},
	}
	keyboardCharacter = [][]string{
		{"Гострий", "Ниючий", "Прострілюючий"},
		{"Пекучий", "Тиснучий"},
		{"Постійний", "Періодичний"},
	}
	keyboardScale = [][]string{
		{"1", "2", "3"},
		{"4", "5", "6"},
		{"7", "8", "9", "10"},
	}
	keyboardAggravating = [][]string{
		{"Сидіння", "Стояння", "Ходьба"},
		{"Нахили", "Повороти"},
		{"Кашель/чхання", "Нічний час"},
		{"Немає особливих факторів"},
	}
	keyboardRelieving = [][]string{
		{"Лежання", "Рух"},
		{"Тепло", "Холод", "Ліки"},
		{"Немає полегшення"},
	}
	keyboardRedFlags = [][]string{
		{"Незрозуміла втрата ваги", "Температура"},
		{"Онкологія в анамнезі"},
		{"Проблеми з сечовипусканням"},
		{"Проблеми з дефекацією"},
		{"Оніміння в промежині"},
		{"Різка слабкість кінцівки"},
		{"Немає таких симптомів"},
	}
	keyboardComorbidities = [][]string{
		{"Остеопороз", "Цукровий діабет"},
		{"Ревматичні захворювання"},
		{"Прийом стероїдів"},
		{"Немає супутніх захворювань"},
	}
	keyboardActivity = [][]string{
		{"Сидяча робота"},
		{"Фізична робота"},
		{"Займаюся спортом"},
		{"Мало рухаюсь"},
	}
	keyboardConfirm = [][]string{
		{LabelConfirm},
		{LabelEdit},
		{LabelCancel},
	}
)
