package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"docsim/pkg/contract"
)

// TestStrictUnmarshal 验证严格解码逻辑。
func TestStrictUnmarshal(t *testing.T) {
	type opt struct {
		A int `json:"a"`
	}
	var o opt
	if err := strictUnmarshal(nil, &o); err != nil || o.A != 0 {
		t.Fatalf("nil 输入失败: %v", err)
	}
	if err := strictUnmarshal(json.RawMessage(`{"a":1}`), &o); err != nil || o.A != 1 {
		t.Fatalf("合法 JSON 解析失败: %v", err)
	}
	if err := strictUnmarshal(json.RawMessage(`{"a":1,"b":2}`), &o); err == nil {
		t.Fatalf("未知字段应报错")
	}
}

type nopRouter struct{}

func (nopRouter) ExtractText(context.Context, string, []byte) (string, error) { return "", nil }

// TestFactories 遍历注册表入口。
func TestFactories(t *testing.T) {
	t.Run("reader", func(t *testing.T) {
		if _, err := Reader["fs"](json.RawMessage(`{}`)); err != nil {
			t.Fatalf("reader: %v", err)
		}
		if _, err := Reader["fs"](json.RawMessage(`{"x":1}`)); err == nil {
			t.Fatalf("reader 未对未知字段报错")
		}
	})
	t.Run("extractors", func(t *testing.T) {
		for _, name := range []string{"text", "docx", "xlsx", "pdf", "brotli"} {
			ex, err := Extractor[name](json.RawMessage(`{}`))
			if err != nil || ex == nil {
				t.Fatalf("%s: %v", name, err)
			}
			if _, err := Extractor[name](json.RawMessage(`{"x":1}`)); err == nil {
				t.Fatalf("%s 未对未知字段报错", name)
			}
		}
		if _, err := Extractor["text"](json.RawMessage(`{"encoding":"no-such-charset"}`)); err == nil {
			t.Fatalf("text 未对未知编码报错")
		}
	})
	t.Run("corpus", func(t *testing.T) {
		c, err := Corpus["inline"](json.RawMessage(`{"texts":["a","b"]}`), nil)
		if err != nil {
			t.Fatalf("inline: %v", err)
		}
		texts, err := c.Load(context.Background())
		if err != nil || len(texts) != 2 {
			t.Fatalf("inline Load: %v %v", texts, err)
		}
		raw := json.RawMessage(fmt.Sprintf(`{"roots":[%q]}`, t.TempDir()))
		if _, err := Corpus["fs"](raw, nopRouter{}); err != nil {
			t.Fatalf("fs: %v", err)
		}
		if _, err := Corpus["fs"](raw, nil); !errors.Is(err, contract.ErrInvariantViolation) {
			t.Fatalf("fs 缺少路由器应报错: %v", err)
		}
		if _, err := Corpus["sqlite"](json.RawMessage(`{}`), nil); !errors.Is(err, contract.ErrInvalidInput) {
			t.Fatalf("sqlite 缺少必填项应报错: %v", err)
		}
		if _, err := Corpus["sqlite"](json.RawMessage(`{"path":"a.db","table":"t","column":"c"}`), nil); err != nil {
			t.Fatalf("sqlite: %v", err)
		}
	})
	t.Run("writer", func(t *testing.T) {
		tmp := t.TempDir()
		raw := json.RawMessage([]byte(fmt.Sprintf(`{"output_dir":%q}`, tmp)))
		if _, err := Writer["fs"](raw); err != nil {
			t.Fatalf("writer: %v", err)
		}
		bad := json.RawMessage([]byte(fmt.Sprintf(`{"output_dir":%q,"x":1}`, tmp)))
		if _, err := Writer["fs"](bad); err == nil {
			t.Fatalf("writer 未对未知字段报错")
		}
	})
	t.Run("store", func(t *testing.T) {
		if _, err := Store["sqlite"](json.RawMessage(`{}`)); !errors.Is(err, contract.ErrInvalidInput) {
			t.Fatalf("store 缺少 path 应报错: %v", err)
		}
		if _, err := Store["sqlite"](json.RawMessage(`{"path":"r.db"}`)); err != nil {
			t.Fatalf("store: %v", err)
		}
	})
}
