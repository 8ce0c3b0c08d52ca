// Package export turns a note's current state into downloadable artifacts.
// Exports never modify the editor they read from.
package export

import (
	"bytes"
	"context"
	"net/mail"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/document"
)

const (
	ExtText = ".txt"
	ExtPDF  = ".pdf"

	ContentTypeText = "text/plain; charset=utf-8"
	ContentTypePDF  = "application/pdf"

	defaultWrapWidth = 180.0 // mm, A4 minus 15 mm margins
	emailTemplate    = "note_export"
)

type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Options struct {
	WrapWidth float64 // body width in mm
	Author    string
}

// Filename builds a download name from title: lowercase ASCII letters and digits only.
func Filename(title, ext string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	name := sb.String()
	if name == "" {
		name = "note"
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return name + ext
}

// Text exports the title, a blank line, then the unformatted body.
func Text(title, content string) Artifact {
	return Artifact{
		Filename:    Filename(title, ExtText),
		ContentType: ContentTypeText,
		Data:        []byte(title + "\n\n" + document.PlainText(content)),
	}
}

// PDF renders the title as a bold heading followed by the body wrapped to opts.WrapWidth.
func PDF(title, content string, opts Options) (Artifact, error) {
	width := opts.WrapWidth
	if width <= 0 {
		width = defaultWrapWidth
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetTitle(title, true)
	if opts.Author != "" {
		pdf.SetAuthor(opts.Author, true)
	}
	pdf.SetCreator("Masomo", true)
	// Core fonts are cp1252: text is wrapped as UTF-8 and each line translated
	// only when written. Characters outside cp1252 are replaced.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	for _, line := range wrap(pdf, tr, title, width) {
		pdf.Cell(width, 9, tr(line))
		pdf.Ln(9)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 11)
	for _, para := range strings.Split(document.PlainText(content), "\n") {
		if strings.TrimSpace(para) == "" {
			pdf.Ln(5.5)
			continue
		}
		for _, line := range wrap(pdf, tr, para, width) {
			pdf.Cell(width, 5.5, tr(line))
			pdf.Ln(5.5)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return Artifact{}, errors.Wrap(err, "rendering pdf")
	}
	return Artifact{Filename: Filename(title, ExtPDF), ContentType: ContentTypePDF, Data: buf.Bytes()}, nil
}

// wrap breaks text into lines no wider than width in the current font, measuring
// the translated text. Words wider than a line are broken between runes.
func wrap(pdf *fpdf.Fpdf, tr func(string) string, text string, width float64) []string {
	fits := func(s string) bool { return pdf.GetStringWidth(tr(s)) <= width }

	var lines []string
	var line string
	for _, word := range strings.Fields(text) {
		if line != "" && fits(line+" "+word) {
			line += " " + word
			continue
		}
		if line != "" {
			lines = append(lines, line)
		}
		for !fits(word) {
			runes := []rune(word)
			n := 1
			for n < len(runes) && fits(string(runes[:n+1])) {
				n++
			}
			if n == len(runes) {
				break
			}
			lines = append(lines, string(runes[:n]))
			word = string(runes[n:])
		}
		line = word
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

// Mail queues a, attached to the note_export email, for to.
func Mail(ctx context.Context, svc core.EmailService, to mail.Address, title string, a Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{to},
		Subject:      "Your note: " + title,
		TemplateName: emailTemplate,
		TemplateData: map[string]interface{}{
			"Name":     to.Name,
			"Title":    title,
			"Filename": a.Filename,
		},
	}
	if err := msg.Attach(bytes.NewReader(a.Data), a.Filename, a.ContentType); err != nil {
		return err
	}
	if err := msg.Render(); err != nil {
		return errors.Wrap(err, "rendering export email")
	}
	svc.SendMessages(msg)
	return nil
}
