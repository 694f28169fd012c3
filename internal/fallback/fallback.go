package fallback

import (
	"github.com/shopspring/decimal"

	"github.com/schoolhub/lessonshop/internal/models"
)

// Lessons returns the built-in catalog shown until the API answers.
func Lessons() []models.Lesson {
	return []models.Lesson{
		lesson(1, "Math", "Hendon", 100, "fa-solid fa-calculator"),
		lesson(2, "English", "Colindale", 80, "fa-solid fa-book"),
		lesson(3, "Science", "Brent Cross", 90, "fa-solid fa-flask"),
		lesson(4, "Art", "Golders G", 95, "fa-solid fa-palette"),
		lesson(5, "Music", "Hendon", 85, "fa-solid fa-music"),
		lesson(6, "Coding", "Colindale", 120, "fa-solid fa-laptop-code"),
		lesson(7, "Dance", "Brent Cross", 70, "fa-solid fa-person-dance"),
		lesson(8, "French", "Golders G", 75, "fa-solid fa-language"),
		lesson(9, "History", "Hendon", 65, "fa-solid fa-landmark"),
		lesson(10, "Sports", "Colindale", 60, "fa-solid fa-basketball"),
	}
}

func lesson(id int64, subject, location string, price int64, icon string) models.Lesson {
	return models.Lesson{
		ID:       models.NumID(id),
		Subject:  subject,
		Location: location,
		Price:    decimal.NewFromInt(price),
		Spaces:   5,
		Icon:     icon,
	}
}
