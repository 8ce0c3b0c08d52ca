package document

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type CommandName string

// Command names follow the browser's rich-text command set the portal's
// toolbar already speaks.
const (
	CmdBold          CommandName = "bold"
	CmdItalic        CommandName = "italic"
	CmdUnderline     CommandName = "underline"
	CmdStrike        CommandName = "strikeThrough"
	CmdJustifyLeft   CommandName = "justifyLeft"
	CmdJustifyCenter CommandName = "justifyCenter"
	CmdJustifyRight  CommandName = "justifyRight"
	CmdJustifyFull   CommandName = "justifyFull"
	CmdBulletList    CommandName = "insertUnorderedList"
	CmdOrderedList   CommandName = "insertOrderedList"
	CmdFormatBlock   CommandName = "formatBlock"
	CmdForeColor     CommandName = "foreColor"
	CmdFontSize      CommandName = "fontSize"
	CmdRemoveFormat  CommandName = "removeFormat"
)

var (
	ErrUnknownCommand  = errors.New("unknown formatting command")
	ErrInvalidArgument = errors.New("invalid command argument")
	// ErrUnsupportedContent is returned when formatting would drop parts of the content.
	ErrUnsupportedContent = errors.New("content has elements the editor cannot format")

	hexColorRegex = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
	rgbColorRegex = regexp.MustCompile(`^rgba?\(\s*(\d{1,3})\s*,\s*(\d{1,3})\s*,\s*(\d{1,3})\s*(,\s*[\d.]+\s*)?\)$`)

	blockFormats = map[string]BlockKind{
		"p":          Paragraph,
		"h1":         Heading1,
		"h2":         Heading2,
		"h3":         Heading3,
		"blockquote": Quote,
	}
)

// Command is a named formatting operation with an optional argument
// (a color for foreColor, 1-7 for fontSize, a block tag for formatBlock).
type Command struct {
	Name CommandName `json:"command"`
	Arg  string      `json:"arg,omitempty"`
}

// ParseCommand validates a command name and its argument.
func ParseCommand(name, arg string) (Command, error) {
	cmd := Command{Name: CommandName(strings.TrimSpace(name)), Arg: strings.TrimSpace(arg)}
	switch cmd.Name {
	case CmdBold, CmdItalic, CmdUnderline, CmdStrike,
		CmdJustifyLeft, CmdJustifyCenter, CmdJustifyRight, CmdJustifyFull,
		CmdBulletList, CmdOrderedList, CmdRemoveFormat:
		cmd.Arg = ""
	case CmdFormatBlock:
		tag := strings.ToLower(strings.Trim(cmd.Arg, "<>"))
		if _, ok := blockFormats[tag]; !ok {
			return Command{}, errors.Wrapf(ErrInvalidArgument, "formatBlock %q", arg)
		}
		cmd.Arg = tag
	case CmdForeColor:
		color, ok := NormalizeColor(cmd.Arg)
		if !ok {
			return Command{}, errors.Wrapf(ErrInvalidArgument, "foreColor %q", arg)
		}
		cmd.Arg = color
	case CmdFontSize:
		size, err := strconv.Atoi(cmd.Arg)
		if err != nil || size < 1 || size > 7 {
			return Command{}, errors.Wrapf(ErrInvalidArgument, "fontSize %q", arg)
		}
	default:
		return Command{}, errors.Wrapf(ErrUnknownCommand, "%q", name)
	}
	return cmd, nil
}

// NormalizeColor accepts #rgb, #rrggbb and rgb()/rgba() and returns lowercase #rrggbb.
func NormalizeColor(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if hexColorRegex.MatchString(s) {
		s = strings.ToLower(s)
		if len(s) == 4 {
			s = "#" + strings.Repeat(s[1:2], 2) + strings.Repeat(s[2:3], 2) + strings.Repeat(s[3:4], 2)
		}
		return s, true
	}
	if m := rgbColorRegex.FindStringSubmatch(strings.ToLower(s)); m != nil {
		var rgb [3]int
		for i := range rgb {
			v, _ := strconv.Atoi(m[i+1])
			if v > 255 {
				return "", false
			}
			rgb[i] = v
		}
		return fmt.Sprintf("#%02x%02x%02x", rgb[0], rgb[1], rgb[2]), true
	}
	return "", false
}
