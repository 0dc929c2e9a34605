package qualitygate

import (
	"net/url"
	"strings"
)

var domesticDomains = []string{
	"bilibili.com", "bilibili.tv", "zhihu.com", "juejin.cn", "csdn.net", "segmentfault.com",
	"cnblogs.com", "imooc.com", "geekbang.org", "time.geekbang.org", "jike.dev", "notion.so",
	"aliyundrive.com", "baidu.com", "tencent.com", "sourl.cn", "docschina.org", "ruanyifeng.com",
	"wangdoc.com", "learnku.com", "bootcss.com", "v2ex.com", "docs.python.org", "typescriptlang.org",
	"react.dev", "nextjs.org", "mozilla.org", "nodejs.org",
}

var foreignDomains = []string{
	"github.com", "stackoverflow.com", "medium.com", "dev.to", "youtube.com", "udemy.com",
	"coursera.org", "pluralsight.com", "frontendmasters.com", "react.dev", "nextjs.org",
	"typescriptlang.org", "python.org", "mozilla.org", "w3.org", "wikipedia.org",
}

// ClassifySource decides whether a material comes from a foreign host. The
// domestic list wins on overlap; unknown hosts count as foreign.
func ClassifySource(rawURL string) (isForeign bool, source string) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Hostname() == "" {
		return true, "unknown"
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range domesticDomains {
		if strings.Contains(host, d) {
			return false, d
		}
	}
	for _, d := range foreignDomains {
		if strings.Contains(host, d) {
			return true, d
		}
	}
	return true, host
}
