package core

import (
	"strings"

	"waitroom-intake/pkg"
)

const (
	reportTitle   = "📋 АНКЕТА ПАЦІЄНТА З БОЛЕМ У СПИНІ"
	reportIndent  = "   "
	unknownIdent  = "невідомий"
	reportDateFmt = "02.01.2006"
)

var reportRule = strings.Repeat("=", 40)

// FormatReport renders the collected answers.  It is a pure function of the
// session: the same session always yields the same text, which is shown on
// the review step and later delivered and stored unchanged.  The reviewer
// variant adds the patient's Telegram handle and user ID.
func FormatReport(s *pkg.Session, forReviewer bool) string {
	a := s.Answers
	get := func(k pkg.FieldKey, placeholder string) string {
		if v, ok := a[k]; ok {
			return v
		}
		return placeholder
	}
	value := func(k pkg.FieldKey) string { return get(k, NotSpecified) }

	var b strings.Builder
	line := func(parts ...string) {
		for _, p := range parts {
			b.WriteString(p)
		}
		b.WriteString("\n")
	}
	item := func(label, v string) {
		if label != "" {
			v = label + ": " + v
		}
		// continuation lines of multi-line answers stay at column 0
		line(reportIndent, v)
	}

	date := NotSpecified
	if !s.StartedAt.IsZero() {
		date = s.StartedAt.Format(reportDateFmt)
	}

	line(reportTitle)
	line(reportRule)
	line()
	line("👤 ПІБ: ", value(KeyName))
	line("📅 Вік: ", value(KeyAge))
	line("🗓 Дата заповнення: ", date)
	line()

	line("1️⃣ ДЕ САМЕ БОЛИТЬ?")
	item("", value(KeyLocation))
	if a[KeyNumbness] == AnswerYes {
		item("Оніміння/поколювання", value(KeyNumbnessLocation))
	} else {
		item("Оніміння/поколювання", value(KeyNumbness))
	}
	line()

	line("2️⃣ КОЛИ ПОЯВИВСЯ БІЛЬ?")
	item("", value(KeyOnset))
	if parent, detail, ok := strings.Cut(a[KeyTrauma], DetailSeparator); ok && parent == AnswerYes {
		item("Після травми", detail)
	} else {
		item("Травма", value(KeyTrauma))
	}
	line()

	line("3️⃣ ХАРАКТЕР БОЛЮ:")
	item("", value(KeyPainCharacter))
	item("Інтенсивність (0-10)", value(KeyPainScale))
	line()

	line("4️⃣ ЩО ПОГІРШУЄ/ПОЛЕГШУЄ:")
	item("Погіршує", value(KeyAggravating))
	item("Полегшує", value(KeyRelieving))
	line()

	line("5️⃣ РАНІШЕ ПОДІБНІ ЕПІЗОДИ:")
	item("", value(KeyPriorEpisodes))
	if a[KeyPriorEpisodes] == AnswerYes {
		item("Як лікували", value(KeyPriorTreatment))
	}
	line()

	line("6️⃣ ЧЕРВОНІ ПРАПОРИ:")
	item("", get(KeyRedFlags, NoneReported))
	line()

	line("7️⃣ СУПУТНІ ЗАХВОРЮВАННЯ:")
	item("", get(KeyComorbidities, NoneReported))
	line()

	line("8️⃣ РІВЕНЬ АКТИВНОСТІ:")
	item("", value(KeyActivity))
	if sport := a[KeySportType]; sport != "" && sport != AnswerNoSport {
		item("Спорт", sport)
	}
	line()

	line("9️⃣ ПОТОЧНЕ ЛІКУВАННЯ:")
	item("Ліки", value(KeyMedication))
	item("Фізіотерапія/масаж", value(KeyPhysiotherapy))
	line()

	line("🔟 АНТРОПОМЕТРИЧНІ ДАНІ:")
	item("Зріст", value(KeyHeight)+" см")
	item("Вага", value(KeyWeight)+" кг")
	line()
	b.WriteString(reportRule)

	if forReviewer {
		b.WriteString("\n📱 Telegram: @" + orUnknown(s.Username))
		b.WriteString("\n🆔 User ID: " + orUnknown(s.UserID))
	}
	return b.String()
}

func orUnknown(v string) string {
	if v == "" {
		return unknownIdent
	}
	return v
}
