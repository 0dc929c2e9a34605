package services

import (
	"fmt"
	"strings"
)

const roadmapSystemPrompt = "你是一个学习路线规划专家，只输出合法 JSON。"

const cardSystemPrompt = "你是一个专业的技术面试辅导助手，善于将复杂的技术内容提炼成简洁的面试问答。"

func orUnset(s *string, unset string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return unset
	}
	return strings.TrimSpace(*s)
}

func roadmapUserPrompt(in GenerateRoadmapInput, weeks int) string {
	return fmt.Sprintf(`请根据以下信息为"%s"生成一个完整的个性化学习路线。

用户背景信息：
掌握技能：%s
学习目标：%s
每周投入时间：%s
学习周期：%d 周
其他限制/要求：%s

请严格按照以下 JSON 格式返回：
{
  "phases": [
    {"id": "phase-1", "title": "阶段标题", "weeks": "第X-Y周", "goal": "阶段目标",
     "focus": ["重点"], "deliverables": ["交付物"],
     "tasks": [{"id": "t1-1", "title": "任务标题", "week": 1, "day": 1, "type": "学习", "status": "pending"}]}
  ],
  "currentTasks": [
    {"id": "t1-1", "title": "今日任务标题", "week": 1, "day": 1, "type": "学习", "difficulty": "简单",
     "estimate": "30分钟", "objective": "学习目标", "doneCriteria": "完成标准",
     "knowledgePoints": [{"id": "kp-1", "title": "知识点", "description": "描述",
       "materials": [{"title": "材料标题", "url": "https://example.com", "type": "article"}]}],
     "materials": [{"title": "材料标题", "url": "https://example.com", "type": "article"}]}
  ]
}

要求：
1. 学习路线总周期为 %d 周，每 3-4 周为一个阶段
2. 每个阶段 3-10 个任务，每个任务包含 week 和 day（1-7）
3. currentTasks 包含 3-5 个具体任务，并且必须同时出现在阶段任务中
4. 所有 URL 必须是真实有效的学习资源链接
5. 任务类型只能是 "学习"、"实操" 或 "复盘"；难度只能是 "简单"、"中等" 或 "进阶"
6. 所有 id 必须唯一

请只返回 JSON，不要有其他内容。`,
		strings.TrimSpace(in.Topic),
		orUnset(in.Background, "未提供"),
		orUnset(in.Goals, "未提供"),
		orUnset(in.TimeBudget, "未提供"),
		weeks,
		orUnset(in.Constraints, "无"),
		weeks,
	)
}

func cardUserPrompt(content string) string {
	return fmt.Sprintf(`请将以下技术内容转换为 3-5 个面试闪卡。

要求：
1. 每个闪卡包含一个问题（正面）和答案（背面）
2. 答案简洁准确，包含核心要点
3. 如果内容包含代码片段，放入 codeSnippet 字段
4. 只提取真正有价值的技术知识点

请严格按照以下 JSON 格式返回：
{"cards": [{"question": "问题描述", "answer": "答案描述", "codeSnippet": "可选的代码片段"}]}

以下是技术内容：
---
%s
---

请只返回 JSON，不要有其他内容。`, content)
}
