// Package convert rewrites text between the remote wiki-markup dialect
// and local markdown. The transforms are pure, stateless substitutions
// with no sync semantics of their own.
package convert

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	wikiCodeLangRe  = regexp.MustCompile(`(?s)\{code:([^}]+)\}(.*?)\{code\}`)
	wikiCodeRe      = regexp.MustCompile(`(?s)\{code\}(.*?)\{code\}`)
	wikiNoformatRe  = regexp.MustCompile(`(?s)\{noformat\}(.*?)\{noformat\}`)
	wikiHeadingRe   = regexp.MustCompile(`(?m)^h([1-6])\.\s+`)
	wikiBoldRe      = regexp.MustCompile(`\*([^*\n]+)\*`)
	wikiItalicRe    = regexp.MustCompile(`_([^_\n]+)_`)
	wikiMonoRe      = regexp.MustCompile(`\{\{([^}]+)\}\}`)
	wikiBulletRe    = regexp.MustCompile(`(?m)^\*\s+`)
	wikiLinkRe      = regexp.MustCompile(`\[([^\]|]+)\|([^\]]+)\]`)
	mdHeadingRe     = regexp.MustCompile(`(?m)^(#{1,6})\s+`)
	mdFenceLangRe   = regexp.MustCompile("(?s)```([a-zA-Z0-9]*)\n(.*?)```")
	mdBoldRe        = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	mdItalicRe      = regexp.MustCompile(`(?:^|[^*])\*([^*\n]+)\*`)
	mdInlineCodeRe  = regexp.MustCompile("`([^`\n]+)`")
	mdLinkRe        = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	crlfRe          = regexp.MustCompile(`\r\n?`)
)

// ToMarkdown rewrites remote wiki markup into local markdown: heading
// markers, emphasis, code and noformat blocks, monospace spans, bullet
// markers, and link syntax, one-to-one.
func ToMarkdown(text string) string {
	if text == "" {
		return ""
	}

	converted := crlfRe.ReplaceAllString(text, "\n")

	converted = wikiCodeLangRe.ReplaceAllStringFunc(converted, func(m string) string {
		sub := wikiCodeLangRe.FindStringSubmatch(m)
		return "```" + sub[1] + "\n" + strings.TrimSpace(sub[2]) + "\n```"
	})
	converted = wikiCodeRe.ReplaceAllStringFunc(converted, func(m string) string {
		sub := wikiCodeRe.FindStringSubmatch(m)
		return "```\n" + strings.TrimSpace(sub[1]) + "\n```"
	})
	converted = wikiNoformatRe.ReplaceAllStringFunc(converted, func(m string) string {
		sub := wikiNoformatRe.FindStringSubmatch(m)
		return "```\n" + strings.TrimSpace(sub[1]) + "\n```"
	})

	converted = wikiHeadingRe.ReplaceAllStringFunc(converted, func(m string) string {
		sub := wikiHeadingRe.FindStringSubmatch(m)
		level := int(sub[1][0] - '0')
		return strings.Repeat("#", level) + " "
	})

	// Emphasis: *bold* -> **bold**, _italic_ -> *italic*. Bold first,
	// the italic rewrite must not touch the doubled asterisks.
	converted = wikiMonoRe.ReplaceAllString(converted, "`$1`")
	converted = wikiBulletRe.ReplaceAllString(converted, "- ")
	converted = wikiBoldRe.ReplaceAllString(converted, "**$1**")
	converted = wikiItalicRe.ReplaceAllString(converted, "*$1*")

	converted = wikiLinkRe.ReplaceAllString(converted, "[$1]($2)")

	return strings.TrimSpace(converted)
}

// ToWiki rewrites local markdown into remote wiki markup, the inverse
// of ToMarkdown for the constructs the engine emits.
func ToWiki(text string) string {
	if text == "" {
		return ""
	}

	converted := crlfRe.ReplaceAllString(text, "\n")

	converted = mdFenceLangRe.ReplaceAllStringFunc(converted, func(m string) string {
		sub := mdFenceLangRe.FindStringSubmatch(m)
		body := strings.TrimSpace(sub[2])
		if sub[1] != "" {
			return fmt.Sprintf("{code:%s}\n%s\n{code}", sub[1], body)
		}
		return fmt.Sprintf("{code}\n%s\n{code}", body)
	})

	converted = mdHeadingRe.ReplaceAllStringFunc(converted, func(m string) string {
		sub := mdHeadingRe.FindStringSubmatch(m)
		return fmt.Sprintf("h%d. ", len(sub[1]))
	})

	converted = mdLinkRe.ReplaceAllString(converted, "[$1|$2]")
	converted = mdInlineCodeRe.ReplaceAllString(converted, "{{$1}}")

	// Italic before bold: *text* must not be re-matched inside the
	// rewritten **text**.
	converted = mdItalicRe.ReplaceAllStringFunc(converted, func(m string) string {
		sub := mdItalicRe.FindStringSubmatch(m)
		prefix := ""
		if !strings.HasPrefix(m, "*") {
			prefix = m[:1]
		}
		return prefix + "_" + sub[1] + "_"
	})
	converted = mdBoldRe.ReplaceAllString(converted, "*$1*")

	return strings.TrimSpace(converted)
}
