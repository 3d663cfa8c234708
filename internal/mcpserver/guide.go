package mcpserver

// AnalysisGuide describes how LLM consumers should use the iris tools to
// analyze vault images and reuse cached results.
const AnalysisGuide = `# Iris Image Analysis Guide

Iris caches image analyses of a Markdown vault. A result is keyed by the
image, the action and the note context around the image, so the same
picture embedded in two notes can have two descriptions.

## Actions

| Action    | Produces                                         |
|-----------|--------------------------------------------------|
| describe  | A detailed description of the image              |
| ocr       | The text visible in the image                    |
| alttext   | A short alternative text for accessibility       |
| custom    | The answer to a free-form ` + "`instruction`" + `            |

` + "`custom`" + ` requires an instruction. The instruction is part of the cache key.

## Workflow

1. ` + "`list_images`" + ` with the note path returns every embedded image, in
   document order, with its resolved vault path.
2. ` + "`lookup_analysis`" + ` returns a cached result if one exists. It never
   calls the analyzer.
3. ` + "`analyze_image`" + ` serves from the cache or calls the configured
   analyzer and caches the answer.
4. Without a configured analyzer, analyze the image yourself:
   - ` + "`build_context`" + ` returns the surrounding text, section, related
     notes, tags and the cache key of every action.
   - ` + "`read_image`" + ` returns the image bytes.
   - ` + "`store_analysis`" + ` caches your answer under the key from step 4.

## Cache keys

Keys look like ` + "`<image-hash>-<action>-<context-hash>`" + `, with a trailing
` + "`-<prompt-hash>`" + ` for custom instructions. A key without a context
hash ignores where the image appears. Editing the text around an image
changes its key, so stale answers are never served for new context.

## Example

` + "```" + `json
{"note": "travel/lisbon.md", "image": "tram.png", "action": "alttext"}
` + "```" + `
`
