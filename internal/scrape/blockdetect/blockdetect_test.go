package blockdetect

import "testing"

func TestDetect(t *testing.T) {
	longBody := make([]byte, 200)
	for i := range longBody {
		longBody[i] = 'x'
	}

	cases := []struct {
		name    string
		html    string
		status  int
		headers map[string]string
		want    BlockType
	}{
		{"rate limited status", string(longBody), 429, nil, RateLimited},
		{"not found status", string(longBody), 404, nil, NotFound},
		{"empty body", "short", 200, nil, EmptyResponse},
		{"bot header 403", string(longBody), 403, map[string]string{"CF-Ray": "abc"}, BotDetection},
		{"access denied 403", string(longBody), 403, nil, AccessDenied},
		{"captcha body", "this page requires recaptcha verification padding padding padding padding padding padding padding padding", 200, nil, Captcha},
		{"clean page", string(longBody), 200, nil, ""},
	}

	for _, c := range cases {
		v := Detect(c.html, c.status, c.headers)
		if v.BlockType != c.want {
			t.Errorf("%s: got %q want %q", c.name, v.BlockType, c.want)
		}
	}
}
