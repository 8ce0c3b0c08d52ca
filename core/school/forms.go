package school

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-portal/core"
)

var (
	scoreRangeTag  = "scorerange"
	scoreRangeText = "score cannot exceed maxScore"

	audienceTag  = "audience"
	audienceText = "audience must be one of all, admin, teacher or student"
)

type (
	CourseForm struct {
		Name        string `json:"name" validate:"required,notblank,max=100"`
		Code        string `json:"code" validate:"required,alphanum_,max=20"`
		Description string `json:"description" validate:"max=1000"`
		TeacherID   string `json:"teacherId,omitempty"`
		Class       string `json:"class,omitempty" validate:"max=50"`
	}

	GradeForm struct {
		StudentID string   `json:"studentId" validate:"required,notblank"`
		CourseID  string   `json:"courseId" validate:"required,notblank"`
		Score     *float64 `json:"score" validate:"required,gte=0"`
		MaxScore  float64  `json:"maxScore" validate:"gt=0"`
		Term      string   `json:"term" validate:"required,notblank,max=20"`
		Comment   string   `json:"comment,omitempty" validate:"max=500"`
	}

	NotificationForm struct {
		Title    string `json:"title" validate:"required,notblank,max=120"`
		Message  string `json:"message" validate:"required,notblank,max=2000"`
		Audience string `json:"audience" validate:"required,audience"`
		Priority string `json:"priority,omitempty" validate:"omitempty,oneof=low normal high"`
	}
)

// InitValidators registers the school forms' custom rules.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(audienceTag, audienceValidation)
	core.RegisterCustomTranslation(validate, translator, audienceTag, audienceText)

	validate.RegisterStructValidation(gradeStructValidation, GradeForm{})
	core.RegisterCustomTranslation(validate, translator, scoreRangeTag, scoreRangeText)
}

func (f *CourseForm) Validate(validate *validator.Validate) error {
	f.Name = core.CleanString(f.Name)
	f.Code = core.CleanString(f.Code)
	f.Description = core.CleanString(f.Description)
	f.Class = core.CleanString(f.Class)
	return validate.Struct(f)
}

// Validate cleans the form; a missing maxScore defaults to 100.
func (f *GradeForm) Validate(validate *validator.Validate) error {
	f.StudentID = core.CleanString(f.StudentID)
	f.CourseID = core.CleanString(f.CourseID)
	f.Term = core.CleanString(f.Term)
	f.Comment = core.CleanString(f.Comment)
	if f.MaxScore == 0 {
		f.MaxScore = 100
	}
	return validate.Struct(f)
}

func (f *NotificationForm) Validate(validate *validator.Validate) error {
	f.Title = core.CleanString(f.Title)
	f.Message = core.CleanString(f.Message)
	f.Audience = core.CleanString(f.Audience, true /* lower */)
	f.Priority = core.CleanString(f.Priority, true /* lower */)
	return validate.Struct(f)
}

// Custom Validators

func audienceValidation(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case AudienceAll, AudienceAdmins, AudienceTeachers, AudienceStudents:
		return true
	}
	return false
}

func gradeStructValidation(sl validator.StructLevel) {
	f, ok := sl.Current().Interface().(GradeForm)
	if !ok || f.Score == nil || f.MaxScore <= 0 {
		return
	}
	if *f.Score > f.MaxScore {
		sl.ReportError(f.Score, "score", "Score", scoreRangeTag, "")
	}
}
