package notes

import (
	"strings"
	"time"
)

// DemoSessions returns the sample sessions used when demo seeding is on, so
// a fresh install has something in the review surface.
func DemoSessions() []CaptureSession {
	return []CaptureSession{
		demoSession("demo-cs-bigo", "Computer Science", time.Date(2025, 11, 8, 10, 30, 0, 0, time.UTC), 45, []string{
			"Today we are discussing algorithm complexity and Big O notation.",
			"Big O notation describes the worst case scenario for algorithm performance.",
			"Time complexity is how runtime scales with input size.",
			"Space complexity measures memory usage as input grows.",
			"Common complexities include O(1), O(log n), O(n), O(n log n), and O(n²).",
			"Binary search has O(log n) complexity while linear search is O(n).",
			"Sorting algorithms like merge sort achieve O(n log n) complexity.",
			"Understanding these concepts is crucial for writing efficient code.",
		}),
		demoSession("demo-math-derivatives", "Mathematics", time.Date(2025, 11, 7, 14, 15, 0, 0, time.UTC), 60, []string{
			"Calculus lecture on derivatives and their applications.",
			"The derivative represents the rate of change of a function.",
			"Power rule: derivative of x to the n equals n times x to the n minus one.",
			"Product rule is used when differentiating two functions multiplied together.",
			"Chain rule helps differentiate composite functions.",
			"Critical points occur where the derivative equals zero.",
			"Second derivative test determines if critical points are maxima or minima.",
			"Applications include optimization problems and motion analysis.",
		}),
		demoSession("demo-physics-newton", "Physics", time.Date(2025, 11, 6, 9, 0, 0, 0, time.UTC), 50, []string{
			"Newton's laws of motion form the foundation of classical mechanics.",
			"First law: an object at rest stays at rest unless acted upon by force.",
			"Second law: force equals mass times acceleration, F equals m a.",
			"Third law: for every action there is an equal and opposite reaction.",
			"These laws explain motion of objects from everyday items to planets.",
			"Friction is a force that opposes motion between surfaces.",
			"Normal force acts perpendicular to contact surfaces.",
			"Understanding forces helps predict and analyze physical systems.",
		}),
		demoSession("demo-bio-cells", "Biology", time.Date(2025, 11, 5, 13, 30, 0, 0, time.UTC), 55, []string{
			"Cell structure and function lecture covering organelles.",
			"The nucleus contains genetic material and controls cell activities.",
			"Mitochondria are the powerhouse of the cell producing ATP.",
			"Ribosomes synthesize proteins using messenger RNA as template.",
			"Endoplasmic reticulum comes in rough and smooth varieties.",
			"Golgi apparatus packages and modifies proteins for transport.",
			"Cell membrane regulates what enters and exits the cell.",
			"Cytoplasm is the gel-like substance filling the cell interior.",
		}),
		demoSession("demo-history-industrial", "History", time.Date(2025, 11, 4, 11, 0, 0, 0, time.UTC), 40, []string{
			"The Industrial Revolution transformed society in the 18th and 19th centuries.",
			"Started in Britain with textile manufacturing innovations.",
			"Steam engine invention by James Watt revolutionized transportation and industry.",
			"Factory system replaced home-based production methods.",
			"Urbanization increased as people moved to cities for work.",
			"Working conditions were often harsh with long hours and low pay.",
			"Child labor was common during early industrial period.",
			"Revolution led to economic growth but also social challenges.",
		}),
		demoSession("demo-cs-trees", "Computer Science", time.Date(2025, 11, 3, 15, 45, 0, 0, time.UTC), 38, []string{
			"Data structures lecture focusing on trees and graphs.",
			"Binary trees have at most two children per node.",
			"Binary search trees maintain sorted order for efficient searching.",
			"Tree traversal includes in-order, pre-order, and post-order methods.",
			"Graphs consist of vertices connected by edges.",
			"Directed graphs have edges with specific direction.",
			"Breadth-first search explores neighbors level by level.",
			"Depth-first search goes deep into one path before backtracking.",
		}),
	}
}

func demoSession(id, subject string, ts time.Time, minutes int, captions []string) CaptureSession {
	return CaptureSession{
		ID:        id,
		Subject:   subject,
		Timestamp: ts,
		Duration:  minutes,
		Captions:  captions,
		RawText:   strings.Join(captions, " "),
	}
}
