package qualitygate

import (
	"fmt"
	"strings"
)

const (
	defaultRelevanceScore  = 0.3
	defaultRelevanceReason = "通用学习资源"
)

type keywordGroup struct {
	name     string
	keywords []string
}

// Ordered: on equal scores the earlier group wins.
var keywordGroups = []keywordGroup{
	{"python", []string{"python", "py", "pip", "asyncio", "typing", "requests", "django", "flask"}},
	{"typescript", []string{"typescript", "ts", "type", "interface", "泛型", "类型"}},
	{"javascript", []string{"javascript", "js", "node", "nodejs", "npm"}},
	{"cli", []string{"cli", "命令行", "argparse", "commander", "终端"}},
	{"web", []string{"http", "https", "request", "fetch", "api", "rest", "html", "css"}},
	{"scraping", []string{"scraping", "爬虫", "beautifulsoup", "selenium", "playwright", "parser", "解析"}},
	{"ai", []string{"ai", "llm", "gpt", "openai", "prompt", "模型", "人工智能"}},
	{"agent", []string{"agent", "代理", "tool", "tool calling", "工具"}},
	{"memory", []string{"memory", "记忆", "vector", "向量", "database", "数据库"}},
	{"roadmap", []string{"roadmap", "学习路线", "教程", "tutorial", "入门", "基础"}},
	{"review", []string{"review", "复盘", "反思", "总结", "回顾"}},
}

// ScoreRelevance matches the combined material and task text against each
// keyword group and returns the best matched fraction with a short reason.
func ScoreRelevance(materialTitle, taskTitle, taskObjective string) (float64, string) {
	text := strings.ToLower(strings.Join([]string{materialTitle, taskTitle, taskObjective}, " "))
	best := 0.0
	reason := ""
	for _, g := range keywordGroups {
		matches := 0
		for _, kw := range g.keywords {
			if strings.Contains(text, kw) {
				matches++
			}
		}
		score := float64(matches) / float64(len(g.keywords))
		if score > best {
			best = score
			top := g.keywords
			if len(top) > 3 {
				top = top[:3]
			}
			reason = fmt.Sprintf("关键词匹配: %s", strings.Join(top, ", "))
		}
	}
	if best == 0 {
		return defaultRelevanceScore, defaultRelevanceReason
	}
	return best, reason
}
