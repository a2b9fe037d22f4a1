package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Freyaaa001/ai-ppt-generator/internal/slides"
)

func jsonMarshalString(v any) (string, error) {
	encoded, err := json.Marshal(v)
	return string(encoded), err
}

const (
	// maxSourceRunes caps the source document fed into outline generation.
	// Longer input is truncated, never rejected.
	maxSourceRunes = 40000
	// maxImagePromptRunes caps the prompt sent to the image model.
	maxImagePromptRunes = 1500
)

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func buildOutlinePrompt(sourceText string, prefs slides.Preferences) string {
	detailed := prefs.Density == slides.DensityDetailed
	pointsLimit := "3-5"
	pointsLength := "25"
	toneInstruction := "极端精简，只保留核心关键词和短语，适合演讲投影。"
	densityLabel := "精简模式"
	if detailed {
		pointsLimit = "5-8"
		pointsLength = "50"
		toneInstruction = "内容详实，提供充分的解释和数据支撑，适合阅读。"
		densityLabel = "详细模式"
	}

	custom := "无特殊要求，请按通用标准生成。"
	if strings.TrimSpace(prefs.CustomInstruction) != "" {
		custom = fmt.Sprintf("用户特别强调: %q。请务必在生成大纲时优先满足此要求。", prefs.CustomInstruction)
	}

	return fmt.Sprintf(`你是一位资深的商务演示文稿专家。你的任务是基于提供的输入材料，制作一份结构清晰、逻辑严密、专业度高的PPT大纲。

输入材料内容如下：
"""
%s
"""

【场景设定】
- **PPT用途**: %s (请根据此用途调整语气和侧重点，例如教学课件应重解释，工作汇报应重结论)
- **内容密度**: %s (%s)

【用户特殊指令/额外要求】
%s

【任务要求】
1. **核心提炼**：深入分析文档，识别关键结论、数据支撑和行动建议。
2. **页数控制**：严格规划约 %d 页的内容。
3. **语言要求**：所有输出必须是**简体中文**。
4. **结构安排**：
   - **封面 (cover)**：主标题要简练且具吸引力，副标题说明汇报语境。
   - **目录/过渡 (section)**：合理划分章节，每3-5页内容应有一个明确的章节过渡页。
   - **内容页 (content)**：每一页只讲一个核心观点。要点(contentPoints)限制在 %s 条以内，每条不超过 %s 字。
   - **结束页 (end)**：致谢或Q&A。
5. **视觉指令 (imagePrompt)**：
   - 为每一页生成具体的英文绘图提示词。
   - 关键词：Minimalist corporate poster, infographic style.
   - 描述：Design a full slide layout for [Title].

【输出格式】
只输出一个 JSON 数组，不要输出任何其它文本或 Markdown 代码块。数组中每个对象必须包含以下字段：
- "type": "cover" | "section" | "content" | "end"
- "title": 字符串
- "subTitle": 字符串（可选）
- "contentPoints": 字符串数组
- "speakerNotes": 字符串
- "imagePrompt": 字符串
- "layout": "text-only" | "text-image-right" | "text-image-left" | "center" | "ai-background"`,
		truncateRunes(sourceText, maxSourceRunes),
		prefs.Purpose,
		densityLabel, toneInstruction,
		custom,
		prefs.TargetCount,
		pointsLimit, pointsLength)
}

func buildFullSlidePrompt(record slides.SlideRecord, theme slides.Theme, instruction string) string {
	var body strings.Builder
	for _, point := range record.BodyPoints {
		body.WriteString("• ")
		body.WriteString(point)
		body.WriteString("\n")
	}

	coreStyle := strings.TrimSpace(record.AssetPrompt)
	if len([]rune(coreStyle)) <= 5 {
		coreStyle = fmt.Sprintf("Professional business presentation slide for %s", record.Title)
	}
	colorContext := fmt.Sprintf("Palette: %s (Main), %s (Accent), White Background",
		theme.Colors.Primary, theme.Colors.Accent)

	prompt := fmt.Sprintf(`**TASK**: Generate a SINGLE, COMPLETE, HIGH-RESOLUTION PRESENTATION SLIDE (16:9).

**CRITICAL REQUIREMENT**:
You must RENDER the following specific Chinese text onto the image. The text must be legible, spelled correctly, and professional.

--- TEXT TO RENDER ---
TITLE: %s
BODY:
%s----------------------

**DESIGN SPECIFICATIONS**:
- STYLE: %s (%s).
- LAYOUT: Professional typographic layout. Title prominent at top or left. Body text organized clearly.
- VISUALS: %s. Integrate abstract graphics or photos that support the topic, but do not obscure the text.
- USER INSTRUCTION: %s

Output a photorealistic or high-quality vector graphic image of the final slide.`,
		record.Title, body.String(), theme.Name, colorContext, coreStyle, instruction)

	return truncateRunes(prompt, maxImagePromptRunes)
}

func buildDiagramPrompt(record slides.SlideRecord, theme slides.Theme) string {
	colorContext := fmt.Sprintf("Use colors: %s, %s, white background",
		theme.Colors.Primary, theme.Colors.Accent)

	prompt := fmt.Sprintf(`Create a high-quality professional business chart, infographic, or knowledge graph diagram that visualizes the following content.

**Content to Visualize**:
Title: %s
Key Points: %s

**Design Requirements**:
- TYPE: Flowchart, Mind Map, or Conceptual Architecture Diagram.
- STYLE: Modern flat vector design, high readability, clean white background.
- COLOR: %s.
- DETAIL: Include simplified text labels relevant to the topic inside the diagram boxes/nodes.
- QUALITY: High resolution, professional presentation asset.

Generate a clean, standalone diagram on a white background.`,
		record.Title, strings.Join(record.BodyPoints, ", "), colorContext)

	return truncateRunes(prompt, maxImagePromptRunes)
}

func buildRefinePrompt(record slides.SlideRecord, instruction string) string {
	points, _ := jsonMarshalString(record.BodyPoints)
	return fmt.Sprintf(`你是一个专业的PPT内容编辑。请根据用户的指令修改当前页面的内容。

【当前页面数据】
标题: %s
要点: %s
演讲备注: %s

【用户修改指令】
%q

【要求】
1. 输出语言必须是**简体中文**。
2. 保持商务专业语气。
3. 只输出一个 JSON 对象，不要输出任何其它文本。对象包含字段 "title"（字符串）、"contentPoints"（字符串数组）、"speakerNotes"（字符串）。`,
		record.Title, points, record.SpeakerNotes, instruction)
}

func buildPromptOptimizePrompt(record slides.SlideRecord) string {
	return fmt.Sprintf(`Generate a detailed PROMPT for an AI Image Generator.
The goal is to generate a **COMPLETE PPT SLIDE IMAGE** that includes BOTH the background design AND the text content rendered directly into the image.

Slide Data:
- Title: %q
- Content: %q

Instruction:
Write a prompt that instructs the image model to:
1. Create a professional presentation slide layout.
2. RENDER the text (Title and Points) legibly using high-contrast typography.
3. Use a specific visual style (Modern, Minimalist, Tech, etc.).

Output only a JSON object: { "imagePrompt": "..." }`,
		record.Title, strings.Join(record.BodyPoints, "; "))
}

func defaultAssetPrompt(title string) string {
	return fmt.Sprintf("Full slide design for %q, professional typography, legible text.", title)
}
