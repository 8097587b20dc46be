package sanitize

import (
	"strings"
	"testing"
)

func TestText_RemovesAllHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "script tag in a posting title",
			input:    `Backend Intern <script>alert('xss')</script> 2026`,
			expected: `Backend Intern  2026`,
		},
		{
			name:     "inline event handler",
			input:    `<div onclick="alert('xss')">Frontend Intern</div>`,
			expected: `Frontend Intern`,
		},
		{
			name:     "iframe injection",
			input:    `Weekly report <iframe src="evil.com"></iframe> attached`,
			expected: `Weekly report  attached`,
		},
		{
			name:     "style tag with expression",
			input:    `<style>body{background:url(javascript:alert('xss'))}</style>Final demo`,
			expected: `Final demo`,
		},
		{
			name:     "formatting stripped from a termination reason",
			input:    `<b>Host</b> <i>insolvent</i>, see <a href="http://example.com">notice</a>`,
			expected: `Host insolvent, see notice`,
		},
		{
			name:     "plain text unchanged",
			input:    `Just plain text`,
			expected: `Just plain text`,
		},
		{
			name:     "empty string",
			input:    ``,
			expected: ``,
		},
		{
			name:     "image tag with onerror",
			input:    `<img src=x onerror="alert('xss')">`,
			expected: ``,
		},
		{
			name:     "svg with script",
			input:    `<svg onload="alert('xss')"><script>alert(1)</script></svg>`,
			expected: ``,
		},
		{
			name:     "data URI",
			input:    `<a href="data:text/html,<script>alert('xss')</script>">Click</a>`,
			expected: `Click`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Text(tt.input)
			if result != tt.expected {
				t.Errorf("Text(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestHTML_AllowsSafeFormatting(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "removes script tags",
			input:    `<p>Join our <script>alert('xss')</script> team</p>`,
			expected: `<p>Join our  team</p>`,
		},
		{
			name:     "removes inline event handlers",
			input:    `<p onclick="alert('xss')">Apply now</p>`,
			expected: `<p>Apply now</p>`,
		},
		{
			name:     "removes iframe",
			input:    `<p>We offer <iframe src="evil.com"></iframe> mentoring</p>`,
			expected: `<p>We offer  mentoring</p>`,
		},
		{
			name:     "allows basic formatting",
			input:    `<p><b>Paid</b> <i>internship</i> <em>with</em> <strong>mentoring</strong></p>`,
			expected: `<p><b>Paid</b> <i>internship</i> <em>with</em> <strong>mentoring</strong></p>`,
		},
		{
			name:     "allows safe links",
			input:    `<p><a href="https://example.com">Team page</a></p>`,
			expected: `<p><a href="https://example.com" rel="nofollow">Team page</a></p>`,
		},
		{
			name:     "allows lists",
			input:    `<ul><li>Go services</li><li>Postgres</li></ul>`,
			expected: `<ul><li>Go services</li><li>Postgres</li></ul>`,
		},
		{
			name:     "allows br tags",
			input:    `Six months<br>Full time`,
			expected: `Six months<br>Full time`,
		},
		{
			name:     "removes dangerous link protocols",
			input:    `<a href="javascript:alert('xss')">Apply</a>`,
			expected: `Apply`,
		},
		{
			name:     "removes style attributes",
			input:    `<p style="color:red; background:url(javascript:alert(1))">Benefits</p>`,
			expected: `<p>Benefits</p>`,
		},
		{
			name:     "plain text unchanged",
			input:    `Just plain text`,
			expected: `Just plain text`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := HTML(tt.input)
			if result != tt.expected {
				t.Errorf("HTML(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

// Test real-world XSS attack vectors against the strict policy.
func TestText_CommonXSSVectors(t *testing.T) {
	vectors := []struct {
		name  string
		input string
	}{
		{"Basic XSS", `<script>alert('XSS')</script>`},
		{"IMG onerror", `<img src=x onerror=alert('XSS')>`},
		{"IMG with quotes", `<img src="x" onerror="alert('XSS')">`},
		{"SVG onload", `<svg onload=alert('XSS')>`},
		{"Body onload", `<body onload=alert('XSS')>`},
		{"Input autofocus", `<input autofocus onfocus=alert('XSS')>`},
		{"Details ontoggle", `<details ontoggle=alert('XSS')><summary>Click</summary></details>`},
		{"JavaScript protocol", `<a href="javascript:alert('XSS')">Click</a>`},
		{"Data URI", `<a href="data:text/html,<script>alert('XSS')</script>">Click</a>`},
		{"Meta refresh", `<meta http-equiv="refresh" content="0;url=javascript:alert('XSS')">`},
		{"Object data", `<object data="javascript:alert('XSS')">`},
		{"Embed src", `<embed src="javascript:alert('XSS')">`},
		{"Form action", `<form action="javascript:alert('XSS')"><input type="submit"></form>`},
	}

	for _, v := range vectors {
		t.Run(v.name, func(t *testing.T) {
			result := Text(v.input)
			for _, d := range []string{"alert", "javascript:", "<script"} {
				if strings.Contains(result, d) {
					t.Errorf("Text(%q) still contains dangerous content %q: %q", v.input, d, result)
				}
			}
		})
	}
}

func TestHTML_CommonXSSVectors(t *testing.T) {
	vectors := []struct {
		name  string
		input string
	}{
		{"Script tag", `<p><script>alert('XSS')</script>Text</p>`},
		{"Inline handler", `<p onclick="alert('XSS')">Text</p>`},
		{"Style with expression", `<p style="background:expression(alert('XSS'))">Text</p>`},
		{"IMG onerror", `<p><img src=x onerror=alert('XSS')>Text</p>`},
		{"JavaScript href", `<p><a href="javascript:alert('XSS')">Link</a></p>`},
	}

	for _, v := range vectors {
		t.Run(v.name, func(t *testing.T) {
			result := HTML(v.input)
			for _, d := range []string{"alert", "javascript:", "<script", "onerror=", "onclick=", "onload="} {
				if strings.Contains(result, d) {
					t.Errorf("HTML(%q) still contains dangerous content %q: %q", v.input, d, result)
				}
			}
		})
	}
}

func BenchmarkText_ShortString(b *testing.B) {
	input := "Intern at <b>Acme Robotics</b>"
	for i := 0; i < b.N; i++ {
		Text(input)
	}
}

func BenchmarkHTML_LongString(b *testing.B) {
	lorem := "<p>Lorem ipsum dolor sit amet.</p>"
	repeated := ""
	for i := 0; i < 10; i++ {
		repeated += lorem
	}
	input := "<p>A much longer posting description with <b>bold text</b>, <i>italic text</i>, " +
		"<a href='http://example.com'>links</a>, and various <script>alert('xss')</script> attempts " +
		"to inject malicious code.</p>" + repeated
	for i := 0; i < b.N; i++ {
		HTML(input)
	}
}
