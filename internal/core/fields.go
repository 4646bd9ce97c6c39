package core

import (
	"fmt"

	"waitroom-intake/pkg"
)

// Answer keys. Location and trauma details have no key of their own; they
// are appended onto their parent answer.
const (
	KeyName             pkg.FieldKey = "name"
	KeyAge              pkg.FieldKey = "age"
	KeyLocation         pkg.FieldKey = "location"
	KeyNumbness         pkg.FieldKey = "numbness"
	KeyNumbnessLocation pkg.FieldKey = "numbness_location"
	KeyOnset            pkg.FieldKey = "onset"
	KeyTrauma           pkg.FieldKey = "trauma"
	KeyPainCharacter    pkg.FieldKey = "pain_character"
	KeyPainScale        pkg.FieldKey = "pain_scale"
	KeyAggravating      pkg.FieldKey = "aggravating"
	KeyRelieving        pkg.FieldKey = "relieving"
	KeyPriorEpisodes    pkg.FieldKey = "prior_episodes"
	KeyPriorTreatment   pkg.FieldKey = "prior_treatment"
	KeyRedFlags         pkg.FieldKey = "red_flags"
	KeyComorbidities    pkg.FieldKey = "comorbidities"
	KeyActivity         pkg.FieldKey = "activity"
	KeySportType        pkg.FieldKey = "sport_type"
	KeyMedication       pkg.FieldKey = "medication"
	KeyPhysiotherapy    pkg.FieldKey = "physiotherapy"
	KeyHeight           pkg.FieldKey = "height"
	KeyWeight           pkg.FieldKey = "weight"
)

// Field describes how a step asks its question, both in the normal flow
// and when the patient comes back to it from the edit menu.
type Field struct {
	Key      pkg.FieldKey
	Step     Step
	Prompt   string
	Keyboard [][]string

	// Edit menu entry; empty for side questions, which are not editable
	// on their own.
	EditLabel    string
	CurrentLabel string
	EditQuestion string
	Unit         string
}

// EditPrompt shows the stored value before asking the question again.
func (f Field) EditPrompt(current string) string {
	if current == "" {
		current = NotSpecified
	}
	return fmt.Sprintf("%s: %s%s\n\n%s", f.CurrentLabel, current, f.Unit, f.EditQuestion)
}

const currentAnswer = "Поточна відповідь"

var fields = []Field{
	{
		Key: KeyName, Step: StepName,
		Prompt:    "Введіть, будь ласка, ваше ПІБ:",
		EditLabel: "👤 ПІБ", CurrentLabel: "Поточне ПІБ", EditQuestion: "Введіть нове ПІБ:",
	},
	{
		Key: KeyAge, Step: StepAge,
		Prompt:    "Скільки вам років? (введіть число)",
		EditLabel: "📅 Вік", CurrentLabel: "Поточний вік", EditQuestion: "Введіть новий вік:",
	},
	{
		Key: KeyLocation, Step: StepLocation,
		Prompt:    "1️⃣ ДЕ САМЕ БОЛИТЬ?\n\nОберіть одну або декілька зон (можете написати кілька через кому):",
		Keyboard:  keyboardLocation,
		EditLabel: "📍 Локалізація болю", CurrentLabel: "Поточна локалізація", EditQuestion: "Оберіть нову локалізацію:",
	},
	{
		Key: KeyLocation, Step: StepLocationDetail,
		Prompt: "Опишіть детальніше, куди саме віддає біль:\n(наприклад: у праву руку до ліктя, у ліву ногу до коліна)",
	},
	{
		Key: KeyNumbness, Step: StepNumbness,
		Prompt:    "Чи є оніміння, поколювання або слабкість?",
		Keyboard:  keyboardYesNo,
		EditLabel: "🔔 Оніміння", CurrentLabel: currentAnswer, EditQuestion: "Чи є оніміння, поколювання або слабкість?",
	},
	{
		Key: KeyNumbnessLocation, Step: StepNumbnessLocation,
		Prompt: "Де саме? (опишіть локалізацію)",
	},
	{
		Key: KeyOnset, Step: StepOnset,
		Prompt:    "2️⃣ КОЛИ ПОЯВИВСЯ БІЛЬ?",
		Keyboard:  keyboardOnset,
		EditLabel: "⏰ Коли появився біль", CurrentLabel: currentAnswer, EditQuestion: "Коли появився біль?",
	},
	{
		Key: KeyTrauma, Step: StepTrauma,
		Prompt:    "Біль з'явився після травми, падіння або підйому ваги?",
		Keyboard:  keyboardYesNo,
		EditLabel: "💥 Травма", CurrentLabel: currentAnswer, EditQuestion: "Біль з'явився після травми, падіння або підйому ваги?",
	},
	{
		Key: KeyTrauma, Step: StepTraumaDetail,
		Prompt:   "Що саме сталося? (опишіть ситуацію або натисніть '" + AnswerSkip + "')",
		Keyboard: [][]string{{AnswerSkip}},
	},
	{
		Key: KeyPainCharacter, Step: StepPainCharacter,
		Prompt:    "3️⃣ ОХАРАКТЕРИЗУЙТЕ БІЛЬ\n\nОберіть один або декілька варіантів (можете написати через кому):",
		Keyboard:  keyboardCharacter,
		EditLabel: "💊 Характер болю", CurrentLabel: currentAnswer, EditQuestion: "Охарактеризуйте біль:",
	},
	{
		Key: KeyPainScale, Step: StepPainScale,
		Prompt:    "Оцініть інтенсивність болю за шкалою від 0 до 10\n(0 - немає болю, 10 - максимальний біль):",
		Keyboard:  keyboardScale,
		EditLabel: "📊 Інтенсивність", CurrentLabel: "Поточна оцінка", EditQuestion: "Оцініть інтенсивність болю (0-10):",
	},
	{
		Key: KeyAggravating, Step: StepAggravating,
		Prompt:    "4️⃣ ЩО ПОГІРШУЄ БІЛЬ?\n\nОберіть один або декілька варіантів:",
		Keyboard:  keyboardAggravating,
		EditLabel: "⬆️ Що погіршує", CurrentLabel: currentAnswer, EditQuestion: "Що погіршує біль?",
	},
	{
		Key: KeyRelieving, Step: StepRelieving,
		Prompt:    "ЩО ПОЛЕГШУЄ БІЛЬ?\n\nОберіть один або декілька варіантів:",
		Keyboard:  keyboardRelieving,
		EditLabel: "⬇️ Що полегшує", CurrentLabel: currentAnswer, EditQuestion: "Що полегшує біль?",
	},
	{
		Key: KeyPriorEpisodes, Step: StepPriorEpisodes,
		Prompt:    "5️⃣ ЧИ БУЛИ РАНІШЕ ПОДІБНІ ЕПІЗОДИ БОЛЮ В СПИНІ?",
		Keyboard:  keyboardYesNo,
		EditLabel: "🔄 Попередні епізоди", CurrentLabel: currentAnswer, EditQuestion: "Чи були раніше подібні епізоди болю в спині?",
	},
	{
		Key: KeyPriorTreatment, Step: StepPriorTreatment,
		Prompt:   "Як тоді лікували? (опишіть методи лікування або оберіть 'Не лікував(ла)')",
		Keyboard: [][]string{{"Не лікував(ла)"}},
	},
	{
		Key: KeyRedFlags, Step: StepRedFlags,
		Prompt:    "6️⃣ ЧЕРВОНІ ПРАПОРИ ⚠️\n\nЧи є у вас наступні симптоми?\n(оберіть всі, що є, або 'Немає таких симптомів'):",
		Keyboard:  keyboardRedFlags,
		EditLabel: "⚠️ Червоні прапори", CurrentLabel: currentAnswer, EditQuestion: "Чи є тривожні симптоми?",
	},
	{
		Key: KeyComorbidities, Step: StepComorbidities,
		Prompt:    "7️⃣ СУПУТНІ ЗАХВОРЮВАННЯ\n\nОберіть всі, що є:",
		Keyboard:  keyboardComorbidities,
		EditLabel: "🏥 Супутні захворювання", CurrentLabel: currentAnswer, EditQuestion: "Супутні захворювання:",
	},
	{
		Key: KeyActivity, Step: StepActivity,
		Prompt:    "8️⃣ РІВЕНЬ АКТИВНОСТІ / РОБОТА\n\nОберіть найбільш підходящий варіант:",
		Keyboard:  keyboardActivity,
		EditLabel: "🏃 Активність", CurrentLabel: currentAnswer, EditQuestion: "Рівень активності / робота:",
	},
	{
		Key: KeySportType, Step: StepSportType,
		Prompt:   "Яким спортом займаєтесь?",
		Keyboard: [][]string{{AnswerNoSport}},
	},
	{
		Key: KeyMedication, Step: StepMedication,
		Prompt:    "9️⃣ ПОТОЧНЕ ЛІКУВАННЯ\n\nЯкі ліки ви зараз приймаєте?\n(напишіть назви або оберіть 'Не приймаю ліків')",
		Keyboard:  [][]string{{"Не приймаю ліків"}},
		EditLabel: "💊 Поточні ліки", CurrentLabel: currentAnswer, EditQuestion: "Які ліки приймаєте?",
	},
	{
		Key: KeyPhysiotherapy, Step: StepPhysiotherapy,
		Prompt:    "Чи проходите зараз фізіотерапію, масаж або мануальну терапію?",
		Keyboard:  keyboardYesNo,
		EditLabel: "💆 Фізіотерапія", CurrentLabel: currentAnswer, EditQuestion: "Чи проходите зараз фізіотерапію, масаж або мануальну терапію?",
	},
	{
		Key: KeyHeight, Step: StepHeight,
		Prompt:    "🔟 АНТРОПОМЕТРИЧНІ ДАНІ\n\nВведіть ваш зріст у сантиметрах:",
		EditLabel: "📏 Зріст", CurrentLabel: "Поточний зріст", EditQuestion: "Введіть новий зріст у сантиметрах:", Unit: " см",
	},
	{
		Key: KeyWeight, Step: StepWeight,
		Prompt:    "Введіть вашу вагу в кілограмах:",
		EditLabel: "⚖️ Вага", CurrentLabel: "Поточна вага", EditQuestion: "Введіть нову вагу в кілограмах:", Unit: " кг",
	},
}

var (
	fieldsByStep      = make(map[Step]Field, len(fields))
	fieldsByEditLabel = make(map[string]Field, len(fields))
	editMenuKeyboard  [][]string
)

func init() {
	var row []string
	for _, f := range fields {
		fieldsByStep[f.Step] = f
		if f.EditLabel == "" {
			continue
		}
		fieldsByEditLabel[f.EditLabel] = f
		row = append(row, f.EditLabel)
		if len(row) == 2 {
			editMenuKeyboard = append(editMenuKeyboard, row)
			row = nil
		}
	}
	if len(row) > 0 {
		editMenuKeyboard = append(editMenuKeyboard, row)
	}
	editMenuKeyboard = append(editMenuKeyboard, []string{LabelBackToForm})
}

// FieldForStep returns the question asked at step s.
func FieldForStep(s Step) (Field, bool) {
	f, ok := fieldsByStep[s]
	return f, ok
}

// EditableFields lists the fields offered in the edit menu, in menu order.
func EditableFields() []Field {
	out := make([]Field, 0, len(fieldsByEditLabel))
	for _, f := range fields {
		if f.EditLabel != "" {
			out = append(out, f)
		}
	}
	return out
}
