package ai

import "fmt"

// maxHearingContentLength caps the combined hearing text embedded in a
// generation prompt, counted in runes. Longer content is cut and marked
// rather than rejected.
const maxHearingContentLength = 10000

// FlowSystemPrompt pins the model to the JSON schema the validator expects.
const FlowSystemPrompt = `あなたはビジネスプロセス整理の専門家です。インタビュー内容を構造化されたビジネスフロー手順に変換することが仕事です。条件分岐や並列処理を適切に識別し、ノード間の接続（エッジ）を明示してください。必ず以下の形式でJSONを返してください：{"actors": [{"name": "登場人物名", "role": "役割"}], "steps": [{"name": "ステップ名", "description": "説明"}], "flow_nodes": [{"text": "アクション", "order": 0, "actor": "登場人物名", "step": "ステップ名"}], "edges": [{"from_order": 0, "to_order": 1, "condition": "条件（オプション）"}]}。すべての説明は日本語で記述してください。`

const flowPromptTemplate = `
以下のビジネスプロセスインタビュー内容に基づいて、構造化されたビジネスフローを作成してください。

インタビュー内容:
%s

要件:
- 3-5人の登場人物（役割）を特定してください
- 3-10個のプロセスステップを作成してください
- 各ステップで各登場人物が行うアクションを明確にしてください
- **条件分岐がある場合は、それを明示的に表現してください**（例：承認/却下、成功/失敗、メール/電話など）
- **並列プロセスがある場合は、複数のフローパスを作成してください**
- ステップは論理的な順序である必要があります
- **ノード間の接続（エッジ）を "edges" 配列で明示してください**
- 改善提案、評価、採点は含めないでください
- 既存のプロセスを改善するのではなく、整理することに焦点を当ててください
- すべての説明は日本語で記述してください

以下の正確な形式で有効なJSONで応答してください:
{
  "actors": [
    {"name": "営業担当", "role": "商品提案と顧客対応"},
    {"name": "顧客", "role": "商品検討と購入決定"},
    {"name": "管理者", "role": "注文確認と発送手続き"}
  ],
  "steps": [
    {"name": "商品提案", "description": "営業担当が顧客に商品を提案する"},
    {"name": "検討・決定", "description": "顧客が商品を検討し購入を決定する"},
    {"name": "注文処理", "description": "管理者が注文を確認し発送手続きを行う"}
  ],
  "flow_nodes": [
    {"text": "顧客に商品を提案する", "order": 0, "actor": "営業担当", "step": "商品提案"},
    {"text": "商品を検討する", "order": 1, "actor": "顧客", "step": "検討・決定"},
    {"text": "購入するか判断する", "order": 2, "actor": "顧客", "step": "検討・決定"},
    {"text": "注文を確認する", "order": 3, "actor": "管理者", "step": "注文処理"},
    {"text": "購入を見送る", "order": 4, "actor": "顧客", "step": "検討・決定"},
    {"text": "発送手続きを行う", "order": 5, "actor": "管理者", "step": "注文処理"}
  ],
  "edges": [
    {"from_order": 0, "to_order": 1},
    {"from_order": 1, "to_order": 2},
    {"from_order": 2, "to_order": 3, "condition": "購入する"},
    {"from_order": 2, "to_order": 4, "condition": "見送る"},
    {"from_order": 3, "to_order": 5}
  ]
}

応答は有効なJSONのみで、追加のテキストや説明は含めないでください。
`

// TruncateHearingContent enforces the prompt size ceiling.
func TruncateHearingContent(content string) string {
	runes := []rune(content)
	if len(runes) <= maxHearingContentLength {
		return content
	}
	return string(runes[:maxHearingContentLength]) + "..."
}

// BuildFlowPrompt renders the generation instructions around the combined
// hearing content. Callers truncate the content first.
func BuildFlowPrompt(hearingContent string) string {
	return fmt.Sprintf(flowPromptTemplate, hearingContent)
}
