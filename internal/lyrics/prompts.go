package lyrics

import "fmt"

const summarizePrompt = `You are preparing study material to be turned into a song.
Summarize the content below into its key learning points: facts, definitions
and relationships a student must remember. Use plain sentences and at most %d words.
Do not add information that is not in the content.

Content:
%s`

const lyricsPrompt = `Write song lyrics that teach the key points below.
Structure the song as [Verse 1], [Chorus], [Verse 2], [Chorus], [Bridge], [Chorus].
Keep lines short and rhythmic, repeat the most important facts in the chorus,
and keep every fact accurate. Return only the lyrics.

Key points:
%s`

func buildSummarizePrompt(text string, maxWords int) string {
	return fmt.Sprintf(summarizePrompt, maxWords, text)
}

func buildLyricsPrompt(summary string) string {
	return fmt.Sprintf(lyricsPrompt, summary)
}
