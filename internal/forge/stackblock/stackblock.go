// Package stackblock implements the fenced, machine-readable region every
// PR body carries (spec.md §4.6): the ordered list of sibling-path branch
// names with their PR numbers and a marker for the submitting branch's
// position. Render splices the block into a body without clobbering any
// human-edited text outside the fence, the same surgical splice the
// teacher's actions.AddPRMetadata/ParsePRMetadata pair performs for its
// own PR metadata comment. The Operation Engine renders the block only
// when it creates a PR, listing just the submitting branch with no PR
// number; it does not rewrite the block on later submits.
package stackblock

import (
	"bytes"
	"encoding/json"

	"emperror.dev/errors"
)

const (
	commentStart = "<!-- pancake stack\n"
	helpText     = "This section is maintained by pancake to track this PR's place in its stack. Do not edit by hand.\n"
	commentEnd   = "-->\n"
)

// Entry is one branch's row in the stack block.
type Entry struct {
	Branch  string `json:"branch"`
	Number  int64  `json:"number,omitempty"`
	Current bool   `json:"current,omitempty"`
}

// Block is the parsed payload: the full sibling path from bottom to top.
type Block struct {
	Entries []Entry `json:"entries"`
}

// Parse locates the fenced block in body and decodes it. Returns the byte
// offsets of the block (including the surrounding comment markers) so
// callers can splice around it.
func Parse(body string) (start, end int, block Block, err error) {
	buf := bytes.NewBufferString(body)
	if err = readLineUntil(buf, commentStart); err != nil {
		return 0, 0, Block{}, errors.WrapIff(err, "expecting %q", commentStart)
	}
	start = len(body) - buf.Len() - len(commentStart)

	if err = readLineUntil(buf, "```\n"); err != nil {
		return 0, 0, Block{}, errors.Wrap(err, `expecting "```"`)
	}

	if err = json.NewDecoder(bytes.NewBuffer(buf.Bytes())).Decode(&block); err != nil {
		return 0, 0, Block{}, errors.Wrap(err, "decoding stack block")
	}

	if err = readLineUntil(buf, "```\n"); err != nil {
		return 0, 0, Block{}, errors.Wrap(err, "expecting closing fence")
	}
	if err = readLineUntil(buf, commentEnd); err != nil {
		return 0, 0, Block{}, errors.WrapIff(err, "expecting %q", commentEnd)
	}
	end = len(body) - buf.Len()
	return start, end, block, nil
}

// Render splices block into body, replacing any existing fenced region
// (found via Parse) and leaving every other line of body untouched.
func Render(body string, block Block) string {
	var out string
	if start, end, _, err := Parse(body); err == nil {
		out = body[:start]
		if end < len(body) {
			out += body[end:] + "\n\n"
		}
	} else {
		out = body + "\n\n"
	}

	var fence bytes.Buffer
	fence.WriteString(commentStart)
	fence.WriteString(helpText)
	fence.WriteString("```\n")
	enc := json.NewEncoder(&fence)
	enc.SetIndent("", "  ")
	_ = enc.Encode(block)
	fence.WriteString("```\n")
	fence.WriteString(commentEnd)

	return out + fence.String()
}

func readLineUntil(b *bytes.Buffer, line string) error {
	for {
		l, err := b.ReadString('\n')
		if err != nil {
			return err
		}
		if l == line {
			return nil
		}
	}
}
