package mcpserver

// NoteFormatContract tells LLM clients how notter derives titles, tags,
// links, and hierarchy from a note file.
const NoteFormatContract = `# notter Note Format

Notes are plain files in one directory tree. Nothing is stored besides the
files; every field is derived from the file on each read.

## Files

- ` + "`.md`" + ` files are Markdown notes, ` + "`.txt`" + ` files are plain-text notes.
  Other files are ignored.
- A note's id is the base64 encoding of its relative path. Renaming or moving
  a note changes its id.
- New files are named from the title, optionally through the naming pattern
  ` + "`{number}-{title}.{extension}`" + `.

## Title

- Markdown: the first line of the content, with leading ` + "`#`" + ` marks and
  surrounding whitespace removed. Start every Markdown note with ` + "`# Title`" + `.
- Plain text: the file name without extension.

## Tags

Any whitespace-separated word starting with ` + "`#`" + `, e.g. ` + "`#project`" + ` or
` + "`#reading-list`" + `. Trailing punctuation is dropped. Tags are case-sensitive
and listed once, in first-seen order.

## Links

Reference another note by its exact title: ` + "`[[Other Note]]`" + `. A note that
contains such a link is a backlink of the target. When a title changes,
links to the old title are rewritten.

## Hierarchy

Titles may carry a Zettelkasten prefix before the first ` + "`-`" + `:
` + "`1-Topic`" + `, ` + "`1a-Detail`" + `, ` + "`1a1-Deeper`" + `, ` + "`1b-Sibling`" + `. A note is below
another when its prefix extends the parent's. After a digit the next level
must start with a letter, so ` + "`10`" + ` is not below ` + "`1`" + `.

## Example

` + "```" + `markdown
# 1a-Indexing strategy

Incremental updates with a nightly rebuild. See [[1-Search]].

#design #search
` + "```" + `
`
