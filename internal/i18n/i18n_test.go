package i18n

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestMatchLanguage(t *testing.T) {
	tests := []struct {
		accept   string
		expected language.Tag
	}{
		{"en-US,en;q=0.9", language.English},
		{"zh-CN,zh;q=0.9", language.Chinese},
		{"fr-FR", language.English}, // Fallback
		{"", language.English},      // Empty
	}

	for _, tt := range tests {
		got := MatchLanguage(tt.accept)
		base, _ := got.Base()
		exp, _ := tt.expected.Base()
		assert.Equal(t, exp, base, "Accept: %s", tt.accept)
	}
}

func TestLocaleTag(t *testing.T) {
	tests := []struct {
		env  map[string]string
		want string
	}{
		{map[string]string{}, "en"},
		{map[string]string{"LANG": "C"}, "en"},
		{map[string]string{"LANG": "en_US.UTF-8"}, "en"},
		{map[string]string{"LANG": "zh_CN.UTF-8"}, "zh"},
		{map[string]string{"LANG": "en_US.UTF-8", "LC_ALL": "zh_CN.UTF-8"}, "zh"},
		{map[string]string{"LANG": "zh_CN.UTF-8", "LC_MESSAGES": "de_DE@euro"}, "en"},
	}

	for _, tt := range tests {
		tag := LocaleTag(func(k string) string { return tt.env[k] })
		base, _ := tag.Base()
		assert.Equal(t, tt.want, base.String(), "env: %v", tt.env)
	}
}

func TestPrinterTranslates(t *testing.T) {
	en := NewPrinter(language.English)
	assert.Equal(t, "Stopped.\n", en.Sprintf(MsgStopped))
	assert.Equal(t, "Forwarding local port 9099 to mc.example.com:25565\n",
		en.Sprintf(MsgForwarding, 9099, "mc.example.com", 25565))

	zh := NewPrinter(language.SimplifiedChinese)
	assert.Equal(t, "已停止。\n", zh.Sprintf(MsgStopped))
	assert.Equal(t, "本地端口 9099 已转发到 mc.example.com:25565\n",
		zh.Sprintf(MsgForwarding, 9099, "mc.example.com", 25565))
}

func TestGetPrinter(t *testing.T) {
	ctx := context.Background()
	assert.NotNil(t, GetPrinter(ctx))

	p := NewPrinter(language.SimplifiedChinese)
	assert.Same(t, p, GetPrinter(WithPrinter(ctx, p)))
}
