package assistant

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ayush/course-assistant/internal/models"
)

const (
	SummaryMaxTokens = 200
	SearchMaxTokens  = 250

	searchDescriptionLimit = 100
)

// Resource is a suggested link shown next to a search answer.
type Resource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// NoCoursesMessage is returned instead of calling a backend for an empty
// semester.
func NoCoursesMessage(semester int) string {
	return fmt.Sprintf("No courses found for Semester %d. Add some courses first!", semester)
}

// SummaryPrompt asks for an overview, key topics and study tips for one
// semester's courses.
func SummaryPrompt(semester int, courses []models.Course) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze these Semester %d courses:\n", semester)
	for _, c := range courses {
		fmt.Fprintf(&b, "- %s (%d credits)", c.Name, c.Credits)
		if c.Description != "" {
			fmt.Fprintf(&b, ": %s", c.Description)
		}
		b.WriteByte('\n')
	}
	b.WriteString("\nProvide:\n")
	b.WriteString("1. Brief overview of this semester's focus\n")
	b.WriteString("2. Key topics covered\n")
	b.WriteString("3. 2-3 study tips for managing these subjects together")
	return b.String()
}

// SearchPrompt puts the user's courses, grouped by semester, ahead of the
// question. Without courses the question is asked on its own.
func SearchPrompt(query string, courses []models.Course) string {
	academic := courseContext(courses)
	if academic == "" {
		return fmt.Sprintf("Answer briefly: %s\n\nProvide a concise explanation in 2-3 sentences.", query)
	}
	return fmt.Sprintf("%s\n\nUser Question: %s\n\n"+
		"Provide a helpful answer based on their courses and academic context. "+
		"If the question relates to their subjects, reference them specifically. "+
		"Keep response concise (2-4 sentences).", academic, query)
}

func courseContext(courses []models.Course) string {
	if len(courses) == 0 {
		return ""
	}
	bySemester := make(map[int][]string, models.MaxSemester)
	for _, c := range courses {
		detail := fmt.Sprintf("%s (%d credits)", c.Name, c.Credits)
		if c.Description != "" {
			detail += " - " + truncate(c.Description, searchDescriptionLimit)
		}
		bySemester[c.Semester] = append(bySemester[c.Semester], detail)
	}

	lines := []string{"User's Academic Data:"}
	for _, sem := range models.Semesters() {
		if details := bySemester[sem]; len(details) > 0 {
			lines = append(lines, fmt.Sprintf("Semester %d: %s", sem, strings.Join(details, "; ")))
		}
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// SearchResources returns the reference links offered with a search answer.
func SearchResources(query string) []Resource {
	topic := strings.ReplaceAll(strings.TrimSpace(query), " ", "_")
	return []Resource{
		{Title: "Wikipedia", URL: "https://en.wikipedia.org/wiki/" + url.PathEscape(topic)},
		{Title: "Khan Academy", URL: "https://www.khanacademy.org"},
		{Title: "Coursera", URL: "https://www.coursera.org"},
	}
}
