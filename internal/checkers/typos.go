package checkers

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/fairyhunter13/ai-code-grader/internal/domain"
)

// commonTypos maps frequent misspellings to their corrections. Lookups are
// lowercased so capitalized occurrences match too.
var commonTypos = map[string]string{
	"teh":           "the",
	"adn":           "and",
	"taht":          "that",
	"hte":           "the",
	"wiht":          "with",
	"thnig":         "thing",
	"thigns":        "things",
	"funciton":      "function",
	"fucntion":      "function",
	"funtion":       "function",
	"retrun":        "return",
	"reutrn":        "return",
	"retrn":         "return",
	"calss":         "class",
	"classs":        "class",
	"improt":        "import",
	"imoprt":        "import",
	"exoprt":        "export",
	"exprot":        "export",
	"cosnt":         "const",
	"conts":         "const",
	"varaible":      "variable",
	"variabel":      "variable",
	"varible":       "variable",
	"strign":        "string",
	"stirng":        "string",
	"nubmer":        "number",
	"numebr":        "number",
	"booelan":       "boolean",
	"bolean":        "boolean",
	"arrary":        "array",
	"arrray":        "array",
	"obejct":        "object",
	"objetc":        "object",
	"objcet":        "object",
	"lenght":        "length",
	"legnth":        "length",
	"widht":         "width",
	"heigth":        "height",
	"hieght":        "height",
	"recieve":       "receive",
	"recive":        "receive",
	"occured":       "occurred",
	"occuring":      "occurring",
	"seperate":      "separate",
	"seperator":     "separator",
	"definately":    "definitely",
	"defintely":     "definitely",
	"neccessary":    "necessary",
	"necesary":      "necessary",
	"occassion":     "occasion",
	"occurence":     "occurrence",
	"adress":        "address",
	"addresss":      "address",
	"enviroment":    "environment",
	"enviornment":   "environment",
	"refrence":      "reference",
	"referece":      "reference",
	"langauge":      "language",
	"languge":       "language",
	"paramter":      "parameter",
	"paramater":     "parameter",
	"arguement":     "argument",
	"arguemnt":      "argument",
	"initalize":     "initialize",
	"intialize":     "initialize",
	"implment":      "implement",
	"implemenation": "implementation",
	"responce":      "response",
	"reponse":       "response",
	"requried":      "required",
	"requred":       "required",
	"availible":     "available",
	"avialable":     "available",
	"visable":       "visible",
	"visiable":      "visible",
	"specifiy":      "specify",
	"specifc":       "specific",
	"acccess":       "access",
	"acces":         "access",
	"successfull":   "successful",
	"succesful":     "successful",
	"becuase":       "because",
	"beacuse":       "because",
	"differnt":      "different",
	"diffrent":      "different",
	"similiar":      "similar",
	"simlar":        "similar",
	"containts":     "contains",
	"contians":      "contains",
	"incldue":       "include",
	"inculde":       "include",
	"defualt":       "default",
	"deafult":       "default",
	"mesage":        "message",
	"messsage":      "message",
	"messgae":       "message",
	"reuslt":        "result",
	"resutl":        "result",
	"reslut":        "result",
}

// TyposChecker flags common misspellings in source and documentation files.
type TyposChecker struct{}

func NewTyposChecker() *TyposChecker { return &TyposChecker{} }

var _ domain.Checker = (*TyposChecker)(nil)

func (c *TyposChecker) Type() domain.CheckType { return domain.CheckTypos }

func (c *TyposChecker) Check(root string) ([]domain.Diagnostic, error) {
	files := collectFiles(root, proseExts)
	return checkFiles(root, files, c.scanFile), nil
}

func (c *TyposChecker) scanFile(rel, content string) []domain.Diagnostic {
	var diags []domain.Diagnostic
	for i, line := range splitLines(content) {
		for _, w := range extractWords(line) {
			correction, ok := commonTypos[strings.ToLower(w.text)]
			if !ok {
				continue
			}
			diags = append(diags, domain.Diagnostic{
				File:       rel,
				Line:       i + 1,
				Column:     w.start + 1,
				Message:    fmt.Sprintf("Possible typo: '%s' -> '%s'", w.text, correction),
				Rule:       "typo",
				Severity:   domain.SeverityInfo,
				Suggestion: suggest(fmt.Sprintf("Did you mean '%s'?", correction)),
			})
		}
	}
	return diags
}

type word struct {
	text  string
	start int
}

// extractWords returns the alphabetic runs of at least three bytes in line,
// with their byte offsets.
func extractWords(line string) []word {
	var words []word
	start := -1

	for i, r := range line {
		if unicode.IsLetter(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			if w := line[start:i]; len(w) >= 3 {
				words = append(words, word{text: w, start: start})
			}
			start = -1
		}
	}
	if start >= 0 {
		if w := line[start:]; len(w) >= 3 {
			words = append(words, word{text: w, start: start})
		}
	}
	return words
}
