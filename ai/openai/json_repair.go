// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

// repairJSON attempts to fix formatting issues small models commonly produce:
// object keys missing their opening quote, and trailing commas before a
// closing bracket. The scan is string-aware so quoted values are never touched.
func repairJSON(s string) string {
	in := []rune(s)
	out := make([]rune, 0, len(in)+16)

	inString := false
	escaped := false

	for i := 0; i < len(in); i++ {
		ch := in[i]

		if inString {
			out = append(out, ch)
			if escaped {
				escaped = false
			} else if ch == '\\' {
				escaped = true
			} else if ch == '"' {
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
			out = append(out, ch)

		case ',':
			// Drop the comma if the next non-whitespace rune closes a scope.
			j := skipSpace(in, i+1)
			if j < len(in) && (in[j] == '}' || in[j] == ']') {
				continue
			}
			out = append(out, ch)

		case '{':
			out = append(out, ch)
			if fixed, next := quoteBareKey(in, i+1); fixed != nil {
				out = append(out, fixed...)
				i = next - 1
			}

		default:
			out = append(out, ch)
		}

		// A comma inside an object may also precede a bare key.
		if ch == ',' && !inString {
			if fixed, next := quoteBareKey(in, i+1); fixed != nil {
				out = append(out, fixed...)
				i = next - 1
			}
		}
	}

	return string(out)
}

// quoteBareKey inspects the runes after an object opener or separator. If a
// bare key followed by `":` starts there, it returns the whole `"key":` run
// with the missing opening quote restored, plus the index just past the colon;
// otherwise nil. Consuming through the colon keeps the caller's string-state
// tracking aligned with the rewritten output.
func quoteBareKey(in []rune, start int) ([]rune, int) {
	i := skipSpace(in, start)
	if i >= len(in) || !isKeyRune(in[i]) {
		return nil, 0
	}

	keyStart := i
	for i < len(in) && (isKeyRune(in[i]) || in[i] == ' ') {
		i++
	}

	// Bare key pattern: name immediately followed by the closing quote and colon.
	if i+1 >= len(in) || in[i] != '"' || in[i+1] != ':' {
		return nil, 0
	}

	fixed := make([]rune, 0, i-start+3)
	fixed = append(fixed, in[start:keyStart]...)
	fixed = append(fixed, '"')
	fixed = append(fixed, in[keyStart:i]...)
	fixed = append(fixed, '"', ':')
	return fixed, i + 2
}

func skipSpace(in []rune, i int) int {
	for i < len(in) && (in[i] == ' ' || in[i] == '\t' || in[i] == '\n' || in[i] == '\r') {
		i++
	}
	return i
}

func isKeyRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_'
}
