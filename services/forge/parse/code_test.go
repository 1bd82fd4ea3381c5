// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractPythonCode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "python fence",
			input: "Here you go:\n```python\ndef f():\n    return 1\n```\nEnjoy!",
			want:  "def f():\n    return 1",
		},
		{
			name:  "generic fence",
			input: "```\ndef g():\n    pass\n```",
			want:  "def g():\n    pass",
		},
		{
			name:  "prose before bare def",
			input: "Sure, here is the function:\ndef h(x):\n    return x",
			want:  "def h(x):\n    return x",
		},
		{
			name:  "raw code passes through",
			input: "x = 1\ny = 2",
			want:  "x = 1\ny = 2",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractPythonCode(tt.input))
		})
	}
}
