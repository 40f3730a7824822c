package services

import (
	"fmt"

	"derjachat/internal/models"
)

// FallbackQuiz builds a deterministic quiz about params.Subject. It is used
// when the model's output could not be turned into enough valid items, so it
// must never fail: it always returns exactly params.QuestionCount items that
// cycle through the allowed types.
func FallbackQuiz(params models.QuizParams) []models.QuizItem {
	params = params.Normalize()
	subject := params.Subject
	if subject == "" {
		subject = "الموضوع"
	}

	items := make([]models.QuizItem, 0, params.QuestionCount)
	for i := 0; i < params.QuestionCount; i++ {
		qType := params.AllowedTypes[i%len(params.AllowedTypes)]
		items = append(items, fallbackItem(qType, subject, i, params))
	}
	return items
}

func fallbackItem(qType models.QuestionType, subject string, i int, params models.QuizParams) models.QuizItem {
	n := i + 1
	item := models.QuizItem{Type: qType}
	if params.HintsEnabled {
		item.Hint = fmt.Sprintf("رجع للمعلومات الأساسية على «%s».", subject)
	}

	switch qType {
	case models.QuestionMCQ:
		options := fallbackOptions(subject, params.OptionCount)
		correct := i % len(options)
		options[correct] = fmt.Sprintf("معلومة صحيحة على «%s»", subject)
		item.Question = fmt.Sprintf("سؤال %d: شنية المعلومة الصحيحة على «%s»؟", n, subject)
		item.Options = options
		item.CorrectIndex = models.IntPtr(correct)
		item.Explanation = fmt.Sprintf("الجواب الصحيح هو اللي يحكي على «%s» بالصحيح.", subject)

	case models.QuestionMCMA:
		options := fallbackOptions(subject, params.OptionCount)
		first := i % len(options)
		second := (first + 1) % len(options)
		options[first] = fmt.Sprintf("معلومة صحيحة أولى على «%s»", subject)
		options[second] = fmt.Sprintf("معلومة صحيحة ثانية على «%s»", subject)
		item.Question = fmt.Sprintf("سؤال %d: اختار المعلومات الصحيحة الكل على «%s».", n, subject)
		item.Options = options
		item.CorrectIndices = filterIndices([]int{first, second}, len(options))
		item.Explanation = fmt.Sprintf("فما أكثر من جواب صحيح على «%s».", subject)

	case models.QuestionTrueFalse:
		truth := i%2 == 0
		if truth {
			item.Question = fmt.Sprintf("سؤال %d: «%s» موضوع ينجم يتعلّم الواحد عليه حاجات جديدة.", n, subject)
			item.CorrectIndex = models.IntPtr(0)
		} else {
			item.Question = fmt.Sprintf("سؤال %d: «%s» ما فيه حتى معلومة تنجم تتعلّمها.", n, subject)
			item.CorrectIndex = models.IntPtr(1)
		}
		item.Options = []string{models.TrueLabel, models.FalseLabel}
		item.Explanation = fmt.Sprintf("ديما فما ما يتعلّم الواحد على «%s».", subject)

	case models.QuestionFillBlank:
		item.Question = fmt.Sprintf("سؤال %d: الموضوع متاع الكويز هذا هو ____.", n)
		item.AnswerText = subject
		item.AcceptableAnswers = []string{subject}
		item.Explanation = fmt.Sprintf("الكويز هذا على «%s».", subject)
	}
	return item
}

func fallbackOptions(subject string, count int) []string {
	if count < models.MinOptionCount {
		count = models.MinOptionCount
	}
	options := make([]string, count)
	for k := range options {
		options[k] = fmt.Sprintf("معلومة غالطة %d على «%s»", k+1, subject)
	}
	return options
}
