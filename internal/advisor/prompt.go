package advisor

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/aicfo/internal/analysis"
)

const promptHeader = `You are the CFO of a company.

Analyze the following financial data (period, revenue, fixed costs, variable costs, cash).

Provide:
1) a short executive summary (max. 5 sentences),
2) an assessment of the runway,
3) 3 clear management decisions,
4) 2 critical risks.

Answer precisely, factually and in a decision-oriented way.

Data:
`

// BuildPrompt embeds the full table snapshot below the instructions.
func BuildPrompt(t *analysis.Table) string {
	return promptHeader + t.String() + "\n"
}

// FallbackReport is the static Markdown report shown when the completion
// service is unavailable. Only the KPI figures vary.
func FallbackReport(k analysis.KPIs) string {
	var b strings.Builder
	b.WriteString("**Executive Summary**  \n")
	fmt.Fprintf(&b, "The average profit per period is about %s.\n", k.AvgProfitText())
	if k.RunwayApplicable {
		fmt.Fprintf(&b, "With a cash balance of %s this gives a runway of roughly %s months.\n", k.StartingCashText(), k.RunwayText())
	} else {
		fmt.Fprintf(&b, "With a cash balance of %s the runway is %s because the average profit is not positive.\n", k.StartingCashText(), analysis.NotApplicable)
	}
	b.WriteString(`
**Management decisions**
1) Hire only while revenue develops steadily.
2) Review variable costs and cut them in the short term.
3) Focus on high-margin existing customers.

**Risks**
- Falling revenue while fixed costs stay the same.
- Limited flexibility because of high fixed costs.
`)
	return b.String()
}
