package ai

import (
	"encoding/base64"
	"fmt"
)

const analyzeSystemPrompt = `You are a smart contract security auditor. You analyze Solidity
source code for vulnerabilities such as reentrancy, integer overflow, unchecked external
calls, access control flaws, front-running exposure, and gas griefing.

Respond with a single JSON object and nothing else. The object has exactly two fields:

{
  "vulnerabilities": [
    {
      "type": "short vulnerability name",
      "description": "what the issue is and where it occurs",
      "riskScore": 7,
      "severity": "High"
    }
  ],
  "summary": "one-paragraph overall assessment of the contract"
}

Rules:
- "severity" must be exactly one of: "Low", "Medium", "High", "Critical".
- "riskScore" must be an integer from 1 to 10.
- If the contract has no findings, return an empty "vulnerabilities" array and still
  provide a "summary".
- Do not wrap the JSON in markdown fences or add commentary.`

const fixSystemPrompt = `You are a smart contract security auditor. Given Solidity source
code and one specific finding from a prior audit, produce a concrete remediation.

Respond with a single JSON object and nothing else:

{
  "suggestedFix": "specific code-level changes that resolve the finding"
}

Do not wrap the JSON in markdown fences or add commentary.`

// analyzeUserPrompt embeds the contract source as a data URI so the payload
// survives transport layers that mangle raw Solidity text.
func analyzeUserPrompt(source string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(source))
	return fmt.Sprintf("Analyze the following Solidity contract for security vulnerabilities.\n\nContract source (base64 data URI):\ndata:text/plain;base64,%s", encoded)
}

func fixUserPrompt(source, findingReport string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(source))
	return fmt.Sprintf("Contract source (base64 data URI):\ndata:text/plain;base64,%s\n\nFinding to remediate:\n%s", encoded, findingReport)
}
