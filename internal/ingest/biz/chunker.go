package biz

import (
	"fmt"
	"strings"
)

// DefaultChunkSize 每个块的默认最大词数。
const DefaultChunkSize = 256

// Chunker 按段落（"\n\n"）和空白分词切分文本，块不跨段落。
type Chunker struct {
	Size int
}

// NewChunker 创建 Chunker，size <= 0 时使用 DefaultChunkSize。
func NewChunker(size int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &Chunker{Size: size}
}

// Split 返回有序的块文本，每块至多 Size 个词，词之间以单个空格连接。
// 空段落不产生块；全部块的词序列等于原文的词序列。
func (c *Chunker) Split(text string) []string {
	size := c.Size
	if size <= 0 {
		size = DefaultChunkSize
	}

	var chunks []string
	for _, para := range strings.Split(text, "\n\n") {
		words := strings.Fields(para)
		for i := 0; i < len(words); i += size {
			end := i + size
			if end > len(words) {
				end = len(words)
			}
			chunks = append(chunks, strings.Join(words[i:end], " "))
		}
	}
	return chunks
}

// Chunks 切分文本并附加文档 ID 与连续索引。
func (c *Chunker) Chunks(documentID, text string) []Chunk {
	texts := c.Split(text)
	chunks := make([]Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = Chunk{DocumentID: documentID, Index: i, Text: t}
	}
	return chunks
}

// ChunkID 返回块在向量库中的主键 "{document_id}_{chunk_index}"。
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_%d", documentID, index)
}
