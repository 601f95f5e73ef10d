package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders market cap samples as CSV.
func RenderCSV(samples []SampleRow) string {
	var sb strings.Builder

	sb.WriteString("step,phase,sampled_at,onchain_mcap,reference_mcap,deviation_pct,within_tolerance,")
	sb.WriteString("token_balance,native_balance,feed_price,reserve0,reserve1,pair_amount\n")

	for _, m := range samples {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%s,%s,%.6f,%t,%s,%s,%s,%s,%s,%s\n",
			m.Step,
			m.Phase,
			m.SampledAt,
			m.OnChainMcap,
			m.ReferenceMcap,
			m.DeviationPct,
			m.WithinTolerance,
			m.TokenBalance,
			m.NativeBalance,
			m.FeedPrice,
			m.Reserve0,
			m.Reserve1,
			m.PairAmount,
		))
	}

	return sb.String()
}

// RenderStepsCSV renders step results as CSV. Error text is quoted.
func RenderStepsCSV(steps []StepRow) string {
	var sb strings.Builder

	sb.WriteString("step,status,error_kind,duration_ms,error\n")
	for _, s := range steps {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%d,%q\n",
			s.Step, s.Status, s.ErrorKind, s.DurationMs, strings.ReplaceAll(s.Error, "\"", "'")))
	}

	return sb.String()
}
