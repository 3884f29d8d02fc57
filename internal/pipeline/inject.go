package pipeline

import "strings"

// InjectCSS inserts a <style> block before </head>, else right after
// <body>, else at the start of the document.
func InjectCSS(htmlContent, css string) string {
	if css == "" {
		return htmlContent
	}

	block := "<style>" + sanitizeCSS(css) + "</style>"
	lower := strings.ToLower(htmlContent)

	if idx := strings.Index(lower, "</head>"); idx != -1 {
		return htmlContent[:idx] + block + htmlContent[idx:]
	}
	if idx := strings.Index(lower, "<body"); idx != -1 {
		if end := strings.Index(htmlContent[idx:], ">"); end != -1 {
			at := idx + end + 1
			return htmlContent[:at] + block + htmlContent[at:]
		}
	}
	return block + htmlContent
}

// sanitizeCSS keeps the stylesheet from closing its <style> element.
func sanitizeCSS(css string) string {
	return strings.ReplaceAll(css, "</", `<\/`)
}
