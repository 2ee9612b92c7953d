package registry

import (
	"bytes"
	"encoding/json"

	cfs "docsim/plugins/corpus/fs"
	cinl "docsim/plugins/corpus/inline"
	csql "docsim/plugins/corpus/sqlite"
	ebr "docsim/plugins/extractor/brotli"
	edocx "docsim/plugins/extractor/docx"
	epdf "docsim/plugins/extractor/pdf"
	etxt "docsim/plugins/extractor/text"
	exlsx "docsim/plugins/extractor/xlsx"
	rfs "docsim/plugins/reader/filesystem"
	ssql "docsim/plugins/store/sqlite"
	wfs "docsim/plugins/writer/filesystem"

	"docsim/pkg/contract"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// NewReader 工厂签名：接收原样 JSON Options。
type NewReader func(raw json.RawMessage) (contract.Reader, error)

// NewExtractor 工厂签名：接收原样 JSON Options。
type NewExtractor func(raw json.RawMessage) (contract.Extractor, error)

// NewCorpus 工厂签名：额外接收文本路由器（文件型语料需要提取文本）。
type NewCorpus func(raw json.RawMessage, router contract.TextRouter) (contract.Corpus, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// NewStore 工厂签名：接收原样 JSON Options。
type NewStore func(raw json.RawMessage) (contract.Store, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 文件系统/STDIN Reader
	"fs": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts), nil
	},
}

// Extractor 工厂注册表。链顺序由配置决定，不由此表决定。
var Extractor = map[string]NewExtractor{
	"text": func(raw json.RawMessage) (contract.Extractor, error) {
		var opts etxt.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return etxt.New(&opts)
	},
	"docx": func(raw json.RawMessage) (contract.Extractor, error) {
		var opts edocx.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return edocx.New(&opts), nil
	},
	"xlsx": func(raw json.RawMessage) (contract.Extractor, error) {
		var opts struct{}
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return exlsx.New(), nil
	},
	"pdf": func(raw json.RawMessage) (contract.Extractor, error) {
		var opts epdf.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return epdf.New(&opts), nil
	},
	// brotli: 解压后按内层文件名回到路由器
	"brotli": func(raw json.RawMessage) (contract.Extractor, error) {
		var opts ebr.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ebr.New(&opts), nil
	},
}

// Corpus 工厂注册表。
var Corpus = map[string]NewCorpus{
	"fs": func(raw json.RawMessage, router contract.TextRouter) (contract.Corpus, error) {
		var opts cfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return cfs.New(&opts, router)
	},
	"sqlite": func(raw json.RawMessage, _ contract.TextRouter) (contract.Corpus, error) {
		var opts csql.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return csql.New(&opts)
	},
	"inline": func(raw json.RawMessage, _ contract.TextRouter) (contract.Corpus, error) {
		var opts cinl.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return cinl.New(&opts)
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer（覆盖写/原子替换可配置）
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
}

// Store 工厂注册表（可选的结构化报告存储）。
var Store = map[string]NewStore{
	"sqlite": func(raw json.RawMessage) (contract.Store, error) {
		var opts ssql.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ssql.New(&opts)
	},
}
