// Package kubernetes projects the data of a Kubernetes ConfigMap or
// Secret into a live lenz source using the watch API.
package kubernetes

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"

	"github.com/zoobzio/lenz"
)

// ResourceType specifies the kind of Kubernetes resource to mirror.
type ResourceType int

const (
	// ConfigMap mirrors a ConfigMap resource.
	ConfigMap ResourceType = iota
	// Secret mirrors a Secret resource.
	Secret
)

// Option configures a Source.
type Option func(*Source)

// WithResourceType sets the resource type to mirror.
// Defaults to ConfigMap.
func WithResourceType(rt ResourceType) Option {
	return func(s *Source) {
		s.resourceType = rt
	}
}

// Source mirrors the data of a single ConfigMap or Secret as key-sorted
// lenz entries. Every watch event is reconciled into granular per-key
// patches, so views over a Source update minimally. Deleting the resource
// empties the mirror; the watch survives and repopulates on re-creation.
//
// Bind views before calling Start: the initial sync then flows through
// them as changes, and all later mutation arrives on the watch goroutine.
type Source struct {
	client       kubernetes.Interface
	namespace    string
	name         string
	resourceType ResourceType
	kv           *lenz.KV

	lastError atomic.Pointer[error]
}

// New creates a Source for the named resource.
func New(client kubernetes.Interface, namespace, name string, opts ...Option) *Source {
	s := &Source{
		client:       client,
		namespace:    namespace,
		name:         name,
		resourceType: ConfigMap,
		kv:           lenz.NewKV(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Len returns the number of mirrored keys.
func (s *Source) Len() int {
	return s.kv.Len()
}

// Snapshot returns a copy of the current entries in key order.
func (s *Source) Snapshot() []lenz.Entry {
	return s.kv.Snapshot()
}

// Get returns the value stored under key and whether it is present.
func (s *Source) Get(key string) (string, bool) {
	return s.kv.Get(key)
}

// OnChanged registers a structural change handler.
func (s *Source) OnChanged(fn func(context.Context, lenz.Change[lenz.Entry]) error) (cancel func()) {
	return s.kv.OnChanged(fn)
}

// LastError returns the last watch or delivery error, or nil.
func (s *Source) LastError() error {
	ptr := s.lastError.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// Start fetches the resource once synchronously, then keeps the source
// current with watch requests until ctx ends.
func (s *Source) Start(ctx context.Context) error {
	rv, err := s.sync(ctx)
	if err != nil {
		return fmt.Errorf("initial sync: %w", err)
	}

	go s.watch(ctx, rv)

	return nil
}

// sync fetches the resource, reconciles its data into the mirror, and
// returns the resource version to resume watching from.
func (s *Source) sync(ctx context.Context) (string, error) {
	var (
		rv      string
		entries []lenz.Entry
	)

	if s.resourceType == ConfigMap {
		cm, err := s.client.CoreV1().ConfigMaps(s.namespace).Get(ctx, s.name, metav1.GetOptions{})
		if err != nil {
			return "", err
		}
		rv = cm.ResourceVersion
		entries = configMapEntries(cm)
	} else {
		sec, err := s.client.CoreV1().Secrets(s.namespace).Get(ctx, s.name, metav1.GetOptions{})
		if err != nil {
			return "", err
		}
		rv = sec.ResourceVersion
		entries = secretEntries(sec)
	}

	if err := s.kv.Sync(ctx, entries); err != nil {
		return "", err
	}
	return rv, nil
}

// watch runs watch requests against the resource, re-listing for a fresh
// resource version whenever a watch expires or fails.
func (s *Source) watch(ctx context.Context, resourceVersion string) {
	for {
		if err := s.watchOnce(ctx, resourceVersion); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.setError(err)
		}

		rv, err := s.sync(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.setError(err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		resourceVersion = rv
	}
}

// watchOnce consumes a single watch stream until it ends.
func (s *Source) watchOnce(ctx context.Context, resourceVersion string) error {
	opts := metav1.ListOptions{
		FieldSelector:   fmt.Sprintf("metadata.name=%s", s.name),
		ResourceVersion: resourceVersion,
		Watch:           true,
	}

	var (
		watcher watch.Interface
		err     error
	)
	if s.resourceType == ConfigMap {
		watcher, err = s.client.CoreV1().ConfigMaps(s.namespace).Watch(ctx, opts)
	} else {
		watcher, err = s.client.CoreV1().Secrets(s.namespace).Watch(ctx, opts)
	}
	if err != nil {
		return fmt.Errorf("failed to start watch: %w", err)
	}
	defer watcher.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.ResultChan():
			if !ok {
				return fmt.Errorf("watch channel closed")
			}
			if err := s.apply(ctx, event); err != nil {
				return err
			}
		}
	}
}

// apply reconciles a single watch event into the mirror. Events for other
// resources are ignored; fake clientsets do not filter by field selector.
func (s *Source) apply(ctx context.Context, event watch.Event) error {
	switch event.Type {
	case watch.Added, watch.Modified:
		switch obj := event.Object.(type) {
		case *corev1.ConfigMap:
			if obj.Name != s.name {
				return nil
			}
			return s.kv.Sync(ctx, configMapEntries(obj))
		case *corev1.Secret:
			if obj.Name != s.name {
				return nil
			}
			return s.kv.Sync(ctx, secretEntries(obj))
		}
		return nil

	case watch.Deleted:
		switch obj := event.Object.(type) {
		case *corev1.ConfigMap:
			if obj.Name != s.name {
				return nil
			}
		case *corev1.Secret:
			if obj.Name != s.name {
				return nil
			}
		}
		return s.kv.Sync(ctx, nil)

	case watch.Error:
		return fmt.Errorf("watch error")

	default:
		return nil
	}
}

func (s *Source) setError(err error) {
	e := err
	s.lastError.Store(&e)
}

func configMapEntries(cm *corev1.ConfigMap) []lenz.Entry {
	entries := make([]lenz.Entry, 0, len(cm.Data))
	for k, v := range cm.Data {
		entries = append(entries, lenz.Entry{Key: k, Value: v})
	}
	return entries
}

func secretEntries(sec *corev1.Secret) []lenz.Entry {
	entries := make([]lenz.Entry, 0, len(sec.Data))
	for k, v := range sec.Data {
		entries = append(entries, lenz.Entry{Key: k, Value: string(v)})
	}
	return entries
}

var (
	_ lenz.Collection[lenz.Entry]     = (*Source)(nil)
	_ lenz.ChangeNotifier[lenz.Entry] = (*Source)(nil)
)
