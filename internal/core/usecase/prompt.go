package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/medical-rag-assistant/internal/core/domain"
)

// Disclaimer is appended to every answer, generated or not.
const Disclaimer = "\n\nImportant: This information is for educational purposes only. " +
	"Always consult with a qualified healthcare professional for medical advice."

const systemPreamble = `You are a medical information assistant for question-answering tasks.
Use the retrieved context below to answer the question.
If the context does not contain the answer, say that you don't know.
Never give a diagnosis or prescribe treatment; recommend seeing a healthcare professional when symptoms are severe or persistent.
Use three sentences maximum and keep the answer concise.`

const noContextPreamble = `You are a medical information assistant.
No reference material is available for this question; answer from general medical knowledge only.
If you are not sure, say that you don't know.
Never give a diagnosis or prescribe treatment; recommend seeing a healthcare professional when symptoms are severe or persistent.
Use three sentences maximum and keep the answer concise.`

func buildPrompt(question string, chunks []domain.ScoredChunk) domain.Prompt {
	if len(chunks) == 0 {
		return domain.Prompt{
			System: noContextPreamble,
			User:   "Question:\n" + question,
		}
	}

	var contextBuilder strings.Builder
	for idx, chunk := range chunks {
		contextBuilder.WriteString(fmt.Sprintf(
			"[%d] source=%s score=%.3f\n%s\n\n",
			idx+1,
			chunk.Chunk.Source,
			chunk.Score,
			chunk.Chunk.Text,
		))
	}

	return domain.Prompt{
		System: systemPreamble,
		User: fmt.Sprintf(`Context:
%s
Question:
%s`, contextBuilder.String(), question),
	}
}
