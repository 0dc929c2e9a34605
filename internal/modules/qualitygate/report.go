package qualitygate

import (
	"fmt"
	"strings"
)

// Report renders task results as a markdown document.
func Report(results []TaskResult) string {
	lines := []string{"# 学习资料质量门禁报告", ""}
	for _, r := range results {
		status := "❌ 未通过"
		if r.Passed {
			status = "✅ 通过"
		}
		lines = append(lines,
			"## "+r.TaskTitle,
			fmt.Sprintf("- 总资料数: %d", r.TotalMaterials),
			fmt.Sprintf("- 可访问: %d (%.0f%%)", r.AccessibleCount, r.AccessibleRate),
			fmt.Sprintf("- 国外来源: %d", r.ForeignCount),
			"- 状态: "+status,
			"",
		)
		for _, m := range r.Results {
			mark := "❌"
			if m.Accessible {
				mark = "✅"
			}
			tag := ""
			if m.IsForeign {
				tag = " [国外]"
			}
			lines = append(lines, fmt.Sprintf("  %s %s%s", mark, m.Title, tag), "    URL: "+m.URL)
			if m.StatusCode != 0 {
				lines = append(lines, fmt.Sprintf("    状态: %d", m.StatusCode))
			}
			if m.RelevanceReason != "" {
				lines = append(lines, "    相关性: "+m.RelevanceReason)
			}
			if m.Error != "" {
				lines = append(lines, "    错误: "+m.Error)
			}
			lines = append(lines, "")
		}
	}
	return strings.Join(lines, "\n")
}
