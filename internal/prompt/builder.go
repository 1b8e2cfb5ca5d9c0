package prompt

import (
	"fmt"
	"strings"
	"text/template"
)

// systemSuffixes is the fixed table of per-ContextClass stylistic
// constraints appended to the base system message.
var systemSuffixes = map[ContextClass]string{
	ClassText:          "The <mask/> is in a paragraph; complete it naturally in the same language without overlap.",
	ClassHeading:       "The <mask/> is in a heading; complete the title to fit the content.",
	ClassBlockQuotes:   "The <mask/> is within a quote; complete it to fit the context.",
	ClassUnorderedList: "The <mask/> is in an unordered list; add item(s) that fit, no overlap.",
	ClassNumberedList:  "The <mask/> is in a numbered list; add item(s) that fit the sequence/context.",
	ClassCodeBlock:     "The <mask/> is in a code block; complete in the same language and support the surrounding text.",
	ClassMathBlock:     "The <mask/> is in a math block; output only LaTeX (no prose).",
	ClassTaskList:      "The <mask/> is in a task list; add logical (sub)tasks.",
}

// DefaultUserMessageTemplate wraps prefix/suffix in explicit markers with a
// <mask/> sentinel indicating the insertion point.
const DefaultUserMessageTemplate = `Insert text at <mask/> so the final text flows from <prefix/> to <suffix/>.
<prefix/>
{{.Prefix}}
</prefix/>
<mask/>
<suffix/>
{{.Suffix}}
</suffix/>
Return ONLY the insertion.`

// Builder assembles [system, few_shot..., user] message sequences.
type Builder struct {
	SystemMessage string
	UserTemplate  *template.Template
	FewShot       []FewShotExample
}

// NewBuilder parses userMessageTemplate with strict undefined-variable
// checking: referencing a field other than Prefix/Suffix is a template
// parse/execution error, never a silent empty substitution.
func NewBuilder(systemMessage, userMessageTemplate string, fewShot []FewShotExample) (*Builder, error) {
	tmpl, err := template.New("user_message").Option("missingkey=error").Parse(userMessageTemplate)
	if err != nil {
		return nil, fmt.Errorf("prompt: parsing user message template: %w", err)
	}
	return &Builder{
		SystemMessage: systemMessage,
		UserTemplate:  tmpl,
		FewShot:       fewShot,
	}, nil
}

type templateVars struct {
	Prefix string
	Suffix string
}

// Build renders the full message sequence for the given cursor context and
// ContextClass.
func (b *Builder) Build(prefix, suffix string, class ContextClass) ([]ChatMessage, error) {
	var sb strings.Builder
	if err := b.UserTemplate.Execute(&sb, templateVars{Prefix: prefix, Suffix: suffix}); err != nil {
		return nil, fmt.Errorf("prompt: rendering user message: %w", err)
	}

	messages := make([]ChatMessage, 0, 2+2*len(b.FewShot))
	messages = append(messages, ChatMessage{Role: "system", Content: b.systemFor(class)})

	for _, ex := range b.FewShot {
		if ex.Context != class {
			continue
		}
		messages = append(messages,
			ChatMessage{Role: "user", Content: ex.Input},
			ChatMessage{Role: "assistant", Content: ex.Answer},
		)
	}

	messages = append(messages, ChatMessage{Role: "user", Content: sb.String()})
	return messages, nil
}

func (b *Builder) systemFor(class ContextClass) string {
	suffix, ok := systemSuffixes[class]
	if !ok {
		return b.SystemMessage
	}
	return b.SystemMessage + "\n\n" + suffix
}

// DefaultFewShotExamples mirrors the two built-in style primers used when
// no configuration overrides them.
func DefaultFewShotExamples() []FewShotExample {
	return []FewShotExample{
		{
			Context: ClassText,
			Input:   "PREFIX: The quick brown <mask/> SUFFIX: over the lazy dog.",
			Answer:  "fox jumps ",
		},
		{
			Context: ClassText,
			Input:   "PREFIX: In conclusion, we find that <mask/> SUFFIX: . Therefore, future work should...",
			Answer:  "the proposed method outperforms baselines by a wide margin",
		},
	}
}

// DefaultSystemMessage mirrors the source's base instruction.
const DefaultSystemMessage = "You insert text at <mask/> so the combined document reads naturally. " +
	"Use BOTH the prefix and suffix as context. Output only the text to insert. " +
	"Do not repeat what is already present in the prefix. Avoid reprinting the suffix. " +
	"Do not output only whitespace. If unsure, produce a short continuation (2-8 words)."

// DefaultChainOfThoughtRegex strips a <think>...</think> reasoning
// scaffold along with any surrounding <final_answer> tags, leaving the
// bare answer text behind.
const DefaultChainOfThoughtRegex = `(?s)<think>.*?</think>|</?final_answer>`
