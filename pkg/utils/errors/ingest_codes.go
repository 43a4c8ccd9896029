package errors

// 文档摄取流水线错误码
// 错误码格式: AABBCCC
// - AA: 20 (Ingest), 21 (Embedding), 11 (Cache), 13 (Vector), 94 (Zotero)
// - BB: 类别代码
// - CCC: 序号

var (
	// 文本提取 (类别 07)
	ErrExtractionFailure = NewInternalErr(ServiceIngest, 1, "Text extraction failed", "文本提取失败")
	ErrUnsupportedFormat = NewRequestErr(ServiceIngest, 1, "Unsupported document format", "不支持的文档格式")
	ErrArtifactWrite     = NewStorageErr(ServiceIngest, 1, "Artifact write failed", "结果文件写入失败")

	// 向量化 (类别 07/10)
	ErrEmbeddingProviderFailure = NewNetworkErr(ServiceEmbedding, 1, "Embedding provider failed", "向量化服务调用失败")
	ErrEmbeddingExhausted       = NewInternalErr(ServiceEmbedding, 1, "All embedding providers exhausted", "所有向量化服务均失败")
	ErrEmbeddingEmpty           = NewInternalErr(ServiceEmbedding, 2, "Embedding provider returned an empty vector", "向量化服务返回空向量")
	ErrProviderNotFound         = NewNotFoundErr(ServiceEmbedding, 1, "Embedding provider not registered", "向量化服务未注册")
	ErrCircuitOpen              = NewRateLimitErr(ServiceEmbedding, 1, "Circuit breaker is open", "熔断器已打开")

	// 缓存 (类别 09)
	ErrCacheCorruption = NewCacheErr(ServiceInfraCache, 1, "Embedding cache is corrupt", "向量缓存已损坏")
	ErrCacheWrite      = NewCacheErr(ServiceInfraCache, 2, "Embedding cache write failed", "向量缓存写入失败")
	ErrCacheLocked     = NewCacheErr(ServiceInfraCache, 3, "Embedding cache is locked", "向量缓存被锁定")

	// 向量存储 (类别 08)
	ErrPersistenceFailure = NewStorageErr(ServiceInfraVector, 1, "Vector persistence failed", "向量持久化失败")

	// Zotero (类别 04/10)
	ErrMetadataUnavailable = NewNotFoundErr(ServiceThirdPartyZotero, 1, "Bibliographic metadata unavailable", "文献元数据不可用")
	ErrZoteroRequest       = NewNetworkErr(ServiceThirdPartyZotero, 1, "Zotero request failed", "Zotero 请求失败")

	// 配置 (类别 12)
	ErrInvalidConfig = NewConfigErr(ServiceIngest, 1, "Invalid configuration", "配置无效")
)
