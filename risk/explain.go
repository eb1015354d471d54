// Copyright 2025 Aegis Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package risk

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aegis-cardano/aegis/decoder"
)

// maxExplainedFactors is how many top-ranked factors appear in an
// explanation
const maxExplainedFactors = 3

// lovelacePerAda converts the native currency's base unit to ADA
const lovelacePerAda = 1_000_000

// Explain renders a verdict and its decoded transaction into a
// deterministic plain-language summary. The output is template-driven:
// no generative text, so it stays auditable and testable.
func Explain(tx *decoder.DecodedTransaction, v *Verdict) string {
	var buf strings.Builder
	if tx != nil {
		fmt.Fprintf(&buf, "Transaction %s:\n", tx.Hash.String())
		for idx, output := range tx.Outputs {
			fmt.Fprintf(
				&buf,
				"- output %d sends %s to %s",
				idx,
				FormatAda(output.Lovelace()),
				output.Address,
			)
			if extra := len(output.Assets) - 1; extra > 0 {
				fmt.Fprintf(&buf, " along with %d native asset(s)", extra)
			}
			buf.WriteString("\n")
		}
		fmt.Fprintf(&buf, "- fee is %s\n", FormatAda(tx.Fee))
		for _, perm := range tx.Permissions {
			if perm.Unbounded() {
				fmt.Fprintf(
					&buf,
					"- grants permission to spend ALL tokens under policy %s\n",
					perm.PolicyId,
				)
			} else {
				names := append([]string{}, perm.AssetNames...)
				sort.Strings(names)
				fmt.Fprintf(
					&buf,
					"- grants permission to spend %d token(s) under policy %s (%s)\n",
					len(names),
					perm.PolicyId,
					strings.Join(names, ", "),
				)
			}
		}
	} else if v.Subject != "" {
		fmt.Fprintf(&buf, "Subject %s:\n", v.Subject)
	}

	fmt.Fprintf(
		&buf,
		"Risk score %d/100 (%s).\n",
		v.Score,
		strings.ToUpper(string(v.Tier)),
	)
	explained := 0
	for _, factor := range v.Factors {
		if explained >= maxExplainedFactors {
			break
		}
		// Zero-weight bookkeeping factors are surfaced via the caveat
		// below, not as reasons
		if factor.Weight == 0 {
			continue
		}
		explained++
		fmt.Fprintf(
			&buf,
			"%d. %s (%+d)\n",
			explained,
			factor.Reason,
			factor.Weight,
		)
	}
	if v.HasIncompleteData() {
		buf.WriteString(
			"Note: some on-chain data was unavailable; treat this verdict as low confidence.\n",
		)
	}
	return buf.String()
}

// FormatAda renders a lovelace quantity in ADA with full precision
func FormatAda(lovelace uint64) string {
	whole := lovelace / lovelacePerAda
	frac := lovelace % lovelacePerAda
	if frac == 0 {
		return fmt.Sprintf("%d ADA", whole)
	}
	return fmt.Sprintf(
		"%d.%s ADA",
		whole,
		strings.TrimRight(fmt.Sprintf("%06d", frac), "0"),
	)
}
