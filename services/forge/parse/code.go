// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package parse

import (
	"regexp"
	"strings"
)

var (
	pythonFenceRe  = regexp.MustCompile("(?s)```python\\s*\\n(.*?)```")
	genericFenceRe = regexp.MustCompile("(?s)```\\s*\\n(.*?)```")
	codeStartRe    = regexp.MustCompile(`(?m)^(def |class )`)
)

// ExtractPythonCode pulls clean Python source out of model output.
//
// Description:
//
//	Tries, in order: a ```python fenced block, a generic fenced block,
//	the text from the first top-level def/class onward, and finally the
//	trimmed text as-is. Returns "" only for empty input; callers decide
//	whether the result actually parses.
func ExtractPythonCode(text string) string {
	if text == "" {
		return ""
	}

	if m := pythonFenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := genericFenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if loc := codeStartRe.FindStringIndex(text); loc != nil {
		return strings.TrimSpace(text[loc[0]:])
	}
	return strings.TrimSpace(text)
}
