package interview

// DefaultQuestions is the built-in list used when no job description is given
// or question generation fails.
var DefaultQuestions = []string{
	"Tell me about yourself and what brings you to this role.",
	"Describe a challenging project you worked on and how you handled it.",
	"Tell me about a time you disagreed with a teammate. How did you resolve it?",
	"What is an accomplishment you are especially proud of, and why?",
	"Where do you see yourself professionally in the next few years?",
}

// fallbackNotice is shown once when tailored questions could not be generated.
const fallbackNotice = "We couldn't generate questions for this job description, so you'll get a standard set instead."
