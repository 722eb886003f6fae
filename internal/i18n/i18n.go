// Package i18n 会议界面的英文和简体中文消息
// Package i18n holds the English and Simplified Chinese messages shown by the
// meeting surfaces. The language itself is resolved by the config layer.
package i18n

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// 支持的语言 / supported languages
const (
	English = "en"
	Chinese = "zh-CN"
)

// Catalog 一种语言的消息表；缺失的键回退到英文，再回退到键本身
// Catalog is one language's messages. Missing keys fall back to English and
// then to the key itself.
type Catalog struct {
	lang     string
	messages map[string]string
}

var active atomic.Pointer[Catalog]

// Init 选择进程级消息表 / Init selects the process-wide catalog
func Init(locale string) {
	active.Store(New(locale))
}

// Current 返回当前消息表，未初始化时为英文
// Current returns the active catalog, English until Init runs
func Current() *Catalog {
	if c := active.Load(); c != nil {
		return c
	}
	c := New(English)
	if active.CompareAndSwap(nil, c) {
		return c
	}
	return active.Load()
}

// T 用当前消息表翻译 / T translates with the active catalog
func T(key string, args ...any) string {
	return Current().T(key, args...)
}

func New(locale string) *Catalog {
	lang := Match(locale)
	c := &Catalog{lang: lang, messages: make(map[string]string, len(EnMessages))}
	for k, v := range EnMessages {
		c.messages[k] = v
	}
	if lang == Chinese {
		for k, v := range ZhCNMessages {
			c.messages[k] = v
		}
	}
	return c
}

func (c *Catalog) T(key string, args ...any) string {
	tmpl, ok := c.messages[key]
	if !ok {
		return key
	}
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}

// Match 将 zh_CN.UTF-8、en-US 等写法映射到支持的语言，其他一律为英文
// Match maps values such as "zh_CN.UTF-8" or "en-US" to a supported
// language. Anything else, including "" and "C", is English.
func Match(locale string) string {
	s := strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(s, ".@"); i >= 0 {
		s = s[:i]
	}
	if strings.HasPrefix(s, "zh") {
		return Chinese
	}
	return English
}
