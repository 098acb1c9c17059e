package cqe

import (
	"net/url"
	"strings"

	"streaming-engine/ddd/domain/vo"
	"streaming-engine/pkg/errno"
)

// SubmitJobCmd 提交打包任务请求
type SubmitJobCmd struct {
	Source        string             `json:"source"`         // 源对象key，bucket为空时使用原始bucket
	Bucket        string             `json:"bucket"`         // 源bucket（可选）
	Renditions    []vo.RenditionSpec `json:"renditions"`     // 为空时使用默认预设
	Encrypt       bool               `json:"encrypt"`        // 是否AES-128加密
	EncryptionURL string             `json:"encryption_url"` // 密钥URL前缀，默认 transcode.key_url_base
	CallbackURL   string             `json:"callback_url"`   // 结果通知地址（可选）
}

func (c *SubmitJobCmd) Validate() error {
	c.Source = strings.TrimSpace(c.Source)
	if c.Source == "" {
		return errno.ErrSourceRequired
	}
	for _, r := range c.Renditions {
		if err := r.Validate(); err != nil {
			return errno.NewBizError(errno.ErrInvalidRendition, err)
		}
	}
	if c.EncryptionURL != "" {
		c.Encrypt = true
		if !strings.HasPrefix(c.EncryptionURL, "/") && !isHTTPURL(c.EncryptionURL) {
			return errno.ErrInvalidEncryptionURL
		}
	}
	if c.CallbackURL != "" && !isHTTPURL(c.CallbackURL) {
		return errno.ErrInvalidNotificationURL
	}
	return nil
}

// ObjectQuery selects objects by bucket and key prefix.
type ObjectQuery struct {
	Bucket string `form:"bucket"`
	Prefix string `form:"prefix"`
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
