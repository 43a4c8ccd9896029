package llm

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kart-io/logger"

	errs "github.com/kart-io/paperline/pkg/utils/errors"
)

// Profile 描述一个可被优先级列表引用的 Embedding 配置：供应商 + 模型 + 凭据。
type Profile struct {
	// ID 优先级列表中引用的标识，例如 "openai"、"contriever_large"。
	ID string `json:"id" mapstructure:"id"`
	// Provider 已注册的供应商名称。
	Provider string `json:"provider" mapstructure:"provider"`
	// Config 传给供应商工厂的配置。
	Config map[string]any `json:"config" mapstructure:"config"`
}

// Decorator 在供应商构造完成后对其进行包装（例如增加 Redis 缓存）。
type Decorator func(profileID string, p EmbeddingProvider) EmbeddingProvider

// Instances 按 profile 懒加载供应商实例，每个 profile 在进程内至多构造一次。
// 构造在锁外进行，慢速 profile 不会阻塞其他 profile；构造失败不会被缓存，下次调用会重新尝试。
type Instances struct {
	mu        sync.Mutex
	profiles  map[string]Profile
	builds    map[string]*build
	factory   func(provider string, config map[string]any) (EmbeddingProvider, error)
	decorator Decorator
}

// build 单个 profile 的构造过程，done 关闭后 provider / err 只读。
type build struct {
	done     chan struct{}
	provider EmbeddingProvider
	err      error
}

// InstancesOption 配置 Instances。
type InstancesOption func(*Instances)

// WithFactory 替换默认的注册表工厂（测试时注入假供应商）。
func WithFactory(fn func(provider string, config map[string]any) (EmbeddingProvider, error)) InstancesOption {
	return func(i *Instances) {
		i.factory = fn
	}
}

// WithDecorator 设置构造后的包装函数。
func WithDecorator(d Decorator) InstancesOption {
	return func(i *Instances) {
		i.decorator = d
	}
}

// NewInstances 创建 profile 实例集合。
func NewInstances(profiles []Profile, opts ...InstancesOption) *Instances {
	i := &Instances{
		profiles: make(map[string]Profile, len(profiles)),
		builds:   make(map[string]*build),
		factory:  NewEmbeddingProvider,
	}
	for _, p := range profiles {
		i.profiles[p.ID] = p
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Get 返回 profile 对应的供应商实例，首次调用时构造。
// 同一 profile 的并发调用等待同一次构造并得到相同结果。
func (i *Instances) Get(id string) (EmbeddingProvider, error) {
	i.mu.Lock()
	b, ok := i.builds[id]
	if ok {
		i.mu.Unlock()
		<-b.done
		return b.provider, b.err
	}

	profile, ok := i.profiles[id]
	if !ok {
		i.mu.Unlock()
		return nil, errs.ErrProviderNotFound.WithMessagef("embedding profile %q is not configured", id)
	}
	b = &build{done: make(chan struct{})}
	i.builds[id] = b
	i.mu.Unlock()

	i.construct(id, profile, b)
	return b.provider, b.err
}

func (i *Instances) construct(id string, profile Profile, b *build) {
	defer func() {
		if b.provider == nil {
			if b.err == nil {
				b.err = errs.ErrInternal.WithMessagef("embedding profile %s was not built", id)
			}
			i.mu.Lock()
			delete(i.builds, id)
			i.mu.Unlock()
		}
		close(b.done)
	}()

	p, err := i.factory(profile.Provider, profile.Config)
	if err != nil {
		b.err = fmt.Errorf("build embedding profile %s: %w", id, err)
		return
	}
	if i.decorator != nil {
		p = i.decorator(id, p)
	}

	logger.Infow("embedding provider initialized", "profile", id, "provider", profile.Provider, "model", ModelOf(p))
	b.provider = p
}

// IDs 返回所有已配置的 profile ID（按字母排序）。
func (i *Instances) IDs() []string {
	i.mu.Lock()
	defer i.mu.Unlock()

	ids := make([]string, 0, len(i.profiles))
	for id := range i.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Built 返回已成功构造的实例数量。
func (i *Instances) Built() int {
	i.mu.Lock()
	defer i.mu.Unlock()

	n := 0
	for _, b := range i.builds {
		select {
		case <-b.done:
			if b.err == nil {
				n++
			}
		default:
		}
	}
	return n
}
