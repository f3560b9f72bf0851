// internal/service/template_service.go
package service

import (
	"strings"

	"github.com/unclebandit/outreach-backend/internal/model"
)

// RenderTemplate substitutes {token} placeholders from a data map.
func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

// RenderProspectTemplate personalizes a message template for a prospect.
// Absent attributes fall back to a literal placeholder; a raw token left in
// an outbound message is a defect.
func RenderProspectTemplate(template string, p *model.Prospect) string {
	data := map[string]string{
		"first_name":   orFallback(p.FirstName, "there"),
		"last_name":    orFallback(p.LastName, ""),
		"company":      orFallback(p.Company, "your organization"),
		"company_name": orFallback(p.Company, "your organization"),
		"title":        orFallback(p.Title, "your role"),
		"industry":     orFallback(p.Industry, "your industry"),
	}
	return strings.TrimSpace(RenderTemplate(template, data))
}

func orFallback(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
